package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupLinesJoinsSameRoundedBaseline(t *testing.T) {
	runs := []run{
		{text: "ms", x: 50, y: 700.2},
		{text: "r:", x: 62, y: 699.8},
		{text: "Pump", x: 50, y: 650},
	}
	lines := groupLines(0, runs)
	require.Len(t, lines, 2)
	assert.Equal(t, "msr:", lines[0].text)
	assert.Equal(t, 50.0, lines[0].x)
	assert.Equal(t, 700.2, lines[0].y)
	assert.Equal(t, "Pump", lines[1].text)
}

func TestGroupLinesSplitsNonAdjacentRuns(t *testing.T) {
	runs := []run{
		{text: "a", x: 0, y: 700},
		{text: "b", x: 0, y: 600},
		{text: "c", x: 0, y: 700},
	}
	lines := groupLines(3, runs)
	require.Len(t, lines, 3)
	assert.Equal(t, 3, lines[2].page)
	assert.Equal(t, "c", lines[2].text)
}

func TestGroupLinesRestoresWordSpaces(t *testing.T) {
	runs := []run{
		{text: "o", x: 50, y: 700, w: 6, size: 12},
		{text: "k", x: 56, y: 700, w: 6, size: 12},
		{text: "x", x: 80, y: 700, w: 6, size: 12},
	}
	lines := groupLines(0, runs)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok x", lines[0].text)
}

func TestGroupLinesNormalisesToNFC(t *testing.T) {
	runs := []run{{text: "\u0438\u0306", x: 0, y: 10}}
	lines := groupLines(0, runs)
	require.Len(t, lines, 1)
	assert.Equal(t, "\u0439", lines[0].text)
}

func TestGroupLinesEmpty(t *testing.T) {
	assert.Empty(t, groupLines(0, nil))
}
