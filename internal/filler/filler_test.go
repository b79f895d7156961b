package filler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
	"github.com/Lllllllleong/pdftemplatefill/internal/pdftest"
)

func onePageTemplate() []byte {
	return pdftest.Build(pdftest.Page{Runs: []pdftest.Run{
		pdftest.At(50, 700, "msr:"),
		pdftest.At(50, 600, "{{customer}}"),
	}})
}

func unicodeFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "GoRegular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o644))
	return path
}

func pageCount(t *testing.T, doc []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(doc), newConfiguration())
	require.NoError(t, err)
	return n
}

func TestFillDrawsTextWithStandardFont(t *testing.T) {
	tmpl := onePageTemplate()
	orig := bytes.Clone(tmpl)
	m := manifestWith(1, textField("msr_daily", 0, 80, 700, 10), textField("customer", 0, 128, 600, 10))

	out, err := New(nil).Fill(context.Background(), tmpl, m, map[string]any{"msr_daily": 100.5, "customer": "ACME"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, StandardFont, out.Font)
	assert.Empty(t, out.Warnings)
	assert.NotEqual(t, tmpl, out.PDF)
	assert.Equal(t, 1, pageCount(t, out.PDF))
	assert.Equal(t, orig, tmpl, "template bytes must not be modified")
}

func TestFillWithoutValuesReturnsCopy(t *testing.T) {
	tmpl := onePageTemplate()
	m := manifestWith(1, textField("msr_daily", 0, 80, 700, 10))

	out, err := New(nil).Fill(context.Background(), tmpl, m, map[string]any{"unrelated": "x"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, tmpl, out.PDF)
	out.PDF[0] = 'X'
	assert.Equal(t, byte('%'), tmpl[0])
}

func TestFillPageCountMismatch(t *testing.T) {
	m := manifestWith(2, textField("a", 0, 1, 1, 10))
	_, err := New(nil).Fill(context.Background(), onePageTemplate(), m, map[string]any{"a": "x"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTemplateLoad), "got %v", err)
}

func TestFillUnreadableTemplate(t *testing.T) {
	m := manifestWith(1, textField("a", 0, 1, 1, 10))
	_, err := New(nil).Fill(context.Background(), []byte("not a pdf"), m, map[string]any{"a": "x"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTemplateLoad), "got %v", err)
}

func TestFillCyrillicRequiresUnicodeFont(t *testing.T) {
	m := manifestWith(1, textField("customer", 0, 128, 600, 10))
	values := map[string]any{"customer": "Насос"}

	_, err := New(nil).Fill(context.Background(), onePageTemplate(), m, values, Options{
		Fonts: FontConfig{OverridePath: filepath.Join(t.TempDir(), "missing.ttf")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrFontUnavailable), "got %v", err)

	out, err := New(nil).Fill(context.Background(), onePageTemplate(), m, values, Options{
		Fonts: FontConfig{OverridePath: unicodeFont(t)},
	})
	require.NoError(t, err)
	assert.NotEqual(t, StandardFont, out.Font)
	assert.Equal(t, 1, pageCount(t, out.PDF))
}

func TestFillFallsBackToBundledFont(t *testing.T) {
	m := manifestWith(1, textField("customer", 0, 128, 600, 10))
	out, err := New(nil).Fill(context.Background(), onePageTemplate(), m, map[string]any{"customer": "Ünïcødé Ω"}, Options{
		Fonts: FontConfig{
			OverridePath: filepath.Join(t.TempDir(), "missing.ttf"),
			BundledPath:  unicodeFont(t),
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, StandardFont, out.Font)
}

func TestResolveFontRejectsFontWithoutCoverage(t *testing.T) {
	cfg := FontConfig{OverridePath: unicodeFont(t)}
	_, err := resolveFont(New(nil).logger, cfg, []string{"漢字"})
	assert.True(t, errors.Is(err, apperrors.ErrFontUnavailable), "got %v", err)

	fnt, err := resolveFont(New(nil).logger, FontConfig{}, []string{"Latin only"})
	require.NoError(t, err)
	assert.Equal(t, StandardFont, fnt.Name)
	assert.False(t, fnt.unicode())
}

func TestFillAcroFormPartialFailure(t *testing.T) {
	tmpl := pdftest.Build(pdftest.Page{
		Runs: []pdftest.Run{pdftest.At(50, 700, "msr:")},
		Widgets: []pdftest.Widget{
			{Name: "customer", Rect: [4]float64{100, 600, 300, 620}},
			{Name: "total", Rect: [4]float64{100, 560, 300, 580}, Value: "old"},
		},
	})
	m := manifestWith(1,
		models.NewAcroFormField("customer", "", 0, "customer"),
		models.NewAcroFormField("ghost", "", 0, "does_not_exist"),
		models.NewAcroFormField("total", "", 0, "total"),
		textField("msr_daily", 0, 80, 700, 10),
	)
	values := map[string]any{"customer": "ACME Pty", "ghost": "lost", "total": 42, "msr_daily": 100.5}

	out, err := New(nil).Fill(context.Background(), tmpl, m, values, Options{})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.True(t, errors.Is(out.Warnings[0], apperrors.ErrMissingFormField))

	pctx, err := api.ReadContext(bytes.NewReader(out.PDF), newConfiguration())
	require.NoError(t, err)
	_, fields, err := formFields(pctx)
	require.NoError(t, err)

	got := map[string]string{}
	for name, ff := range fields {
		v, err := decodeText(pctx, ff.dict["V"])
		require.NoError(t, err)
		got[name] = v
	}
	assert.Equal(t, map[string]string{"customer": "ACME Pty", "total": "42"}, got)
}

var (
	stampInvocation = regexp.MustCompile(`(-?[\d.]+) (-?[\d.]+) cm /\S+ gs /(\S+) Do`)
	formTranslation = regexp.MustCompile(`(-?[\d.]+) (-?[\d.]+) cm`)
	textPosition    = regexp.MustCompile(`(-?[\d.]+) (-?[\d.]+) Td`)
)

func parseFloats(t *testing.T, m []string) (float64, float64) {
	t.Helper()
	x, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(m[2], 64)
	require.NoError(t, err)
	return x, y
}

// stampOrigins returns the page-space start of the text drawn by each
// stamp on page 1.
func stampOrigins(t *testing.T, doc []byte) [][2]float64 {
	t.Helper()
	pctx, err := api.ReadContext(bytes.NewReader(doc), newConfiguration())
	require.NoError(t, err)
	page, _, _, err := pctx.PageDict(1, false)
	require.NoError(t, err)
	content, err := pctx.PageContent(page, 1)
	require.NoError(t, err)

	res, err := pctx.DereferenceDict(page["Resources"])
	require.NoError(t, err)
	xobjects, err := pctx.DereferenceDict(res["XObject"])
	require.NoError(t, err)

	var out [][2]float64
	for _, m := range stampInvocation.FindAllStringSubmatch(string(content), -1) {
		px, py := parseFloats(t, m)
		sd, _, err := pctx.DereferenceStreamDict(xobjects[m[3]])
		require.NoError(t, err)
		require.NoError(t, sd.Decode())
		form := string(sd.Content)

		var fx, fy float64
		if tm := formTranslation.FindStringSubmatch(form); tm != nil {
			fx, fy = parseFloats(t, tm)
		}
		td := textPosition.FindStringSubmatch(form)
		require.NotNil(t, td, "form %s draws no text", m[3])
		tx, ty := parseFloats(t, td)
		out = append(out, [2]float64{px + fx + tx, py + fy + ty})
	}
	return out
}

func TestFillPlacesBaselineAtDrawAnchor(t *testing.T) {
	for _, size := range []float64{10, 24} {
		t.Run(strconv.FormatFloat(size, 'f', -1, 64), func(t *testing.T) {
			m := manifestWith(1, textField("customer", 0, 80, 700, size))
			out, err := New(nil).Fill(context.Background(), onePageTemplate(), m, map[string]any{"customer": "XYZ"}, Options{})
			require.NoError(t, err)

			origins := stampOrigins(t, out.PDF)
			require.Len(t, origins, 1)
			assert.InDelta(t, 80, origins[0][0], 0.01)
			assert.InDelta(t, 700, origins[0][1], 0.01)
		})
	}
}

func TestFillClearsKidWidgetAppearance(t *testing.T) {
	tmpl := pdftest.Build(pdftest.Page{Widgets: []pdftest.Widget{
		{Name: "site", Rect: [4]float64{100, 600, 300, 620}, Value: "old", Kid: true},
	}})
	m := manifestWith(1, models.NewAcroFormField("site", "", 0, "site"))

	out, err := New(nil).Fill(context.Background(), tmpl, m, map[string]any{"site": "Берег"}, Options{
		Fonts: FontConfig{OverridePath: unicodeFont(t)},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)

	pctx, err := api.ReadContext(bytes.NewReader(out.PDF), newConfiguration())
	require.NoError(t, err)
	acro, fields, err := formFields(pctx)
	require.NoError(t, err)
	assert.Equal(t, types.Boolean(true), acro["NeedAppearances"])

	site, ok := fields["site"]
	require.True(t, ok)
	v, err := decodeText(pctx, site.dict["V"])
	require.NoError(t, err)
	assert.Equal(t, "Берег", v)

	kids, err := pctx.DereferenceArray(site.dict["Kids"])
	require.NoError(t, err)
	require.Len(t, kids, 1)
	kid, err := pctx.DereferenceDict(kids[0])
	require.NoError(t, err)
	assert.Equal(t, types.Name("Widget"), kid["Subtype"])
	assert.NotContains(t, kid, "AP")
}

func TestBaselineLiftMatchesCoreFontDescent(t *testing.T) {
	cases := map[int]float64{10: 3, 24: 6, 1: 1}
	for points, want := range cases {
		assert.Equal(t, want, baselineLift(StandardFont, points), "points %d", points)
	}
}
