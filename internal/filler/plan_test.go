package filler

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

func textField(name string, page int, x, y, size float64) models.Field {
	return models.NewTextField(name, "{{"+name+"}}", page,
		models.Box{X: x - 30, Y: y, W: 24, H: 10},
		models.Draw{X: x, Y: y, Gap: 6, Font: "Helvetica", Size: size})
}

func manifestWith(pages int, fields ...models.Field) *models.Manifest {
	m := models.NewManifest("abc123", "template.pdf", pages)
	m.Fields = append(m.Fields, fields...)
	return m
}

func TestBuildPlanSkipsUnpopulatedFields(t *testing.T) {
	m := manifestWith(1,
		textField("a", 0, 100, 700, 10),
		textField("b", 0, 100, 650, 10),
		textField("c", 0, 100, 600, 10),
		models.NewAcroFormField("d", "", 0, "form.d"),
	)
	p, err := buildPlan(m, map[string]any{"a": "x", "c": nil, "extra": "ignored"}, 0)
	require.NoError(t, err)
	require.Len(t, p.stamps, 1)
	assert.Equal(t, "a", p.stamps[0].field)
	assert.Empty(t, p.forms)

	p, err = buildPlan(m, nil, 0)
	require.NoError(t, err)
	assert.True(t, p.empty())
}

func TestBuildPlanSkipsEmptyTextButSetsEmptyFormValue(t *testing.T) {
	m := manifestWith(1, textField("a", 0, 1, 1, 10), models.NewAcroFormField("d", "", 0, "form.d"))
	p, err := buildPlan(m, map[string]any{"a": "", "d": ""}, 0)
	require.NoError(t, err)
	assert.Empty(t, p.stamps)
	require.Len(t, p.forms, 1)
	assert.Equal(t, "form.d", p.forms[0].acroformName)
}

func TestBuildPlanAnchorsAndSizes(t *testing.T) {
	m := manifestWith(2, textField("a", 1, 120, 500, 14), textField("b", 0, 80, 400, 0))

	p, err := buildPlan(m, map[string]any{"a": 16.33, "b": 7}, 0)
	require.NoError(t, err)
	require.Len(t, p.stamps, 2)
	assert.Equal(t, stampOp{field: "a", page: 1, x: 120, y: 500, size: 14, text: "16.33"}, p.stamps[0])
	assert.Equal(t, DefaultFontSize, p.stamps[1].size)

	p, err = buildPlan(m, map[string]any{"a": "x", "b": "y"}, 9)
	require.NoError(t, err)
	assert.Equal(t, 9.0, p.stamps[0].size)
	assert.Equal(t, 9.0, p.stamps[1].size)
}

func TestBuildPlanRejectsBadInput(t *testing.T) {
	m := manifestWith(1, textField("a", 0, 1, 1, 10))
	_, err := buildPlan(m, map[string]any{"a": true}, 0)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	m = manifestWith(1, textField("a", 3, 1, 1, 10))
	_, err = buildPlan(m, map[string]any{"a": "x"}, 0)
	assert.True(t, errors.Is(err, apperrors.ErrTemplateLoad))
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"Pump A-12", "Pump A-12"},
		{100.5, "100.5"},
		{16.0, "16"},
		{42, "42"},
		{int64(-3), "-3"},
		{json.Number("4.54"), "4.54"},
	}
	for _, c := range cases {
		got, err := Stringify(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	for _, bad := range []any{true, []string{"x"}, map[string]any{}, math.NaN()} {
		_, err := Stringify(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestNeedsUnicode(t *testing.T) {
	assert.False(t, needsUnicode([]string{"plain", "Café ±5°"}))
	assert.True(t, needsUnicode([]string{"plain", "Насос"}))
	assert.True(t, needsUnicode([]string{"€"}))
}
