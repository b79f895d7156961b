// Package markers scans the text layer of a PDF template for placeholder
// markers and turns them into positioned manifest fields.
//
// Two syntaxes are recognised: a line consisting solely of a standard token
// ("msr:", "n:", "sh:", "mchr:"), bound to field names through a
// BindingTable, and "{{ name }}" anywhere in a line, which becomes a field
// called name. Glyph geometry is estimated with a fixed glyph width; the
// text layer does not expose per-substring metrics.
package markers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// Geometry and draw defaults of detected fields.
const (
	DefaultGap      = 6.0
	GlyphWidth      = 6.0
	MarkerHeight    = 10.0
	DefaultFont     = "Helvetica"
	DefaultFontSize = 10.0
	RowTolerance    = 5.0
	MaxCustomName   = 64
)

var customMarker = regexp.MustCompile(fmt.Sprintf(`\{\{\s*([\p{L}\p{N}._\-\s]{1,%d})\s*\}\}`, MaxCustomName))

// Options tune detection. Zero values select the defaults.
type Options struct {
	// Gap is the horizontal distance between a marker's right edge and the value anchor.
	Gap float64
	// Bindings replaces DefaultBindings when non-nil.
	Bindings *BindingTable
	Logger   *slog.Logger
}

// Detector finds markers in PDF bytes. It holds no per-document state and
// is safe for concurrent use.
type Detector struct {
	gap      float64
	bindings BindingTable
	logger   *slog.Logger
}

// Scan is the outcome of one detection pass.
type Scan struct {
	Pages  int
	Fields []models.Field
}

// hit is a raw marker occurrence before binding.
type hit struct {
	page   int
	marker string
	token  string // standard token, empty for custom markers
	name   string // custom marker name
	x, y   float64
}

// NewDetector returns a Detector configured by opts.
func NewDetector(opts Options) *Detector {
	d := &Detector{gap: opts.Gap, bindings: DefaultBindings, logger: opts.Logger}
	if d.gap <= 0 {
		d.gap = DefaultGap
	}
	if opts.Bindings != nil {
		d.bindings = *opts.Bindings
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Detect parses data and returns its page count and the bound fields in
// page reading order. It fails with a MalformedDocument error when data is
// not a readable PDF.
func (d *Detector) Detect(data []byte) (*Scan, error) {
	pages, err := readPages(data)
	if err != nil {
		return nil, err
	}

	var lines []line
	for i, runs := range pages {
		lines = append(lines, groupLines(i, runs)...)
	}

	hits := d.collect(lines)
	sortHits(hits)
	fields := d.bind(hits)

	d.logger.Debug("Marker detection finished.", "pages", len(pages), "lines", len(lines), "hits", len(hits), "fields", len(fields))
	return &Scan{Pages: len(pages), Fields: fields}, nil
}

// readPages extracts the positioned runs of every page. The parser panics
// on some structural damage; that is reported as MalformedDocument too.
func readPages(data []byte) (pages [][]run, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = apperrors.Wrap(apperrors.KindMalformedDocument, fmt.Errorf("%v", r), "failed to parse PDF")
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, apperrors.Wrap(apperrors.KindMalformedDocument, err, "unsupported encryption")
		}
		return nil, apperrors.Wrap(apperrors.KindMalformedDocument, err, "failed to parse PDF")
	}
	n := r.NumPage()
	if n == 0 {
		return nil, apperrors.New(apperrors.KindMalformedDocument, "PDF has no pages")
	}

	pages = make([][]run, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, t := range p.Content().Text {
			pages[i-1] = append(pages[i-1], run{text: t.S, x: t.X, y: t.Y, w: t.W, size: t.FontSize})
		}
	}
	return pages, nil
}

// collect finds standard and custom markers in lines. Custom names are
// accepted once per document, first occurrence in text-layer order.
func (d *Detector) collect(lines []line) []hit {
	var hits []hit
	seen := make(map[string]struct{})
	for _, l := range lines {
		if tok := strings.TrimSpace(l.text); d.bindings.IsToken(tok) {
			hits = append(hits, hit{page: l.page, marker: tok, token: tok, x: l.x, y: l.y})
		}
		for _, m := range customMarker.FindAllStringSubmatchIndex(l.text, -1) {
			name := strings.TrimSpace(l.text[m[2]:m[3]])
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			after := utf8.RuneCountInString(l.text[:m[1]])
			hits = append(hits, hit{
				page:   l.page,
				marker: l.text[m[0]:m[1]],
				name:   name,
				x:      l.x + float64(after)*GlyphWidth,
				y:      l.y,
			})
		}
	}
	return hits
}

// sortHits orders hits by page, then top to bottom, treating baselines
// within RowTolerance as one row ordered left to right.
func sortHits(hits []hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.page != b.page {
			return a.page < b.page
		}
		if math.Abs(a.y-b.y) > RowTolerance {
			return a.y > b.y
		}
		return a.x < b.x
	})
}

// bind turns sorted hits into fields. The nth occurrence of a standard
// token takes the nth name of its binding; surplus occurrences and names
// already emitted are dropped.
func (d *Detector) bind(hits []hit) []models.Field {
	fields := make([]models.Field, 0, len(hits))
	counters := make(map[string]int)
	emitted := make(map[string]struct{})

	for _, h := range hits {
		width := float64(utf8.RuneCountInString(h.marker)) * GlyphWidth
		var (
			name string
			box  models.Box
		)
		if h.token != "" {
			n, ok := d.bindings.Name(h.token, counters[h.token])
			if !ok {
				d.logger.Debug("Dropping surplus marker occurrence.", "marker", h.token, "page", h.page)
				continue
			}
			counters[h.token]++
			name = n
			box = models.Box{X: h.x, Y: h.y, W: width, H: MarkerHeight}
		} else {
			name = h.name
			box = models.Box{X: h.x - width, Y: h.y, W: width, H: MarkerHeight}
		}
		if _, dup := emitted[name]; dup {
			d.logger.Warn("Dropping marker whose field name is already bound.", "field", name, "marker", h.marker, "page", h.page)
			continue
		}
		emitted[name] = struct{}{}

		draw := models.Draw{
			X:    box.X + box.W + d.gap,
			Y:    h.y,
			Gap:  d.gap,
			Font: DefaultFont,
			Size: DefaultFontSize,
		}
		fields = append(fields, models.NewTextField(name, h.marker, h.page, box, draw))
	}
	return fields
}
