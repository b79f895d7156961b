package markers

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// run is one positioned piece of text as exposed by the text layer.
type run struct {
	text string
	x, y float64
	w    float64
	size float64
}

// line is a concatenation of adjacent runs sharing a rounded baseline.
// x and y are the first run's origin.
type line struct {
	page int
	text string
	x, y float64
}

// spaceFactor is the fraction of the font size a horizontal gap between
// two runs must exceed before a space is inserted. The text layer drops
// space glyphs, so words would otherwise be glued together.
const spaceFactor = 0.2

// groupLines concatenates consecutive runs whose baselines round to the
// same integer.
func groupLines(page int, runs []run) []line {
	var (
		out     []line
		b       strings.Builder
		cur     line
		prev    run
		started bool
	)
	flush := func() {
		if !started {
			return
		}
		cur.text = norm.NFC.String(b.String())
		out = append(out, cur)
		b.Reset()
	}
	for _, r := range runs {
		if started && math.Round(r.y) == math.Round(prev.y) {
			if prev.w > 0 && r.x-(prev.x+prev.w) > spaceFactor*math.Max(prev.size, 1) {
				b.WriteByte(' ')
			}
			b.WriteString(r.text)
			prev = r
			continue
		}
		flush()
		started = true
		cur = line{page: page, x: r.x, y: r.y}
		b.WriteString(r.text)
		prev = r
	}
	flush()
	return out
}
