// Package filler renders values into a registered template: text drawn at
// the anchors recorded in its manifest, or values set on interactive form
// fields. The template bytes are never modified; every call produces a new
// document.
package filler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// pdfcpu keeps its configuration and installed user fonts in package state.
var pdfcpuMu sync.Mutex

// Options configure one fill call.
type Options struct {
	// FontSize overrides every field's stored size when positive.
	FontSize float64
	Fonts    FontConfig
}

// Output is a filled document plus the per-field problems that were
// skipped rather than failing the call.
type Output struct {
	PDF      []byte
	Font     string
	Warnings []error
}

// Filler fills templates. It is safe for concurrent use.
type Filler struct {
	logger *slog.Logger
}

// New returns a Filler that logs to logger, or to slog.Default when nil.
func New(logger *slog.Logger) *Filler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filler{logger: logger}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Fill renders values into template according to m. Fields without a value
// are skipped. It fails with TemplateLoadError when template is unreadable
// or its page count differs from the manifest, and with FontUnavailable
// when a value needs a Unicode font that cannot be loaded.
func (f *Filler) Fill(ctx context.Context, template []byte, m *models.Manifest, values map[string]any, opts Options) (*Output, error) {
	if m == nil {
		return nil, apperrors.New(apperrors.KindValidation, "manifest is required")
	}
	logCtx := f.logger.With("templateId", m.TemplateID)

	p, err := buildPlan(m, values, opts.FontSize)
	if err != nil {
		return nil, err
	}

	pdfcpuMu.Lock()
	defer pdfcpuMu.Unlock()

	pages, err := api.PageCount(bytes.NewReader(template), newConfiguration())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplateLoad, err, "failed to load template %s", m.TemplateID)
	}
	if pages != m.Pages {
		return nil, apperrors.New(apperrors.KindTemplateLoad, "template %s has %d pages, manifest expects %d", m.TemplateID, pages, m.Pages)
	}

	out := &Output{Font: StandardFont}
	if p.empty() {
		logCtx.Info("No manifest field has a value; returning template unchanged.")
		out.PDF = bytes.Clone(template)
		return out, nil
	}

	fnt, err := resolveFont(logCtx, opts.Fonts, p.texts())
	if err != nil {
		logCtx.Error("Font resolution failed.", "error", err)
		return nil, err
	}
	out.Font = fnt.Name

	doc := template
	if len(p.forms) > 0 {
		doc, out.Warnings, err = fillForms(doc, p.forms)
		if err != nil {
			logCtx.Error("Failed to fill form fields.", "error", err)
			return nil, err
		}
		for _, w := range out.Warnings {
			logCtx.Warn("Skipped form field.", "error", w)
		}
	}

	if len(p.stamps) > 0 {
		doc, err = stamp(doc, p.stamps, fnt.Name)
		if err != nil {
			logCtx.Error("Failed to draw values.", "error", err, "font", fnt.Name)
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.PDF = doc
	logCtx.Info("Template filled.", "stamps", len(p.stamps), "formFields", len(p.forms), "skipped", len(out.Warnings), "font", fnt.Name, "unicodeFont", fnt.unicode())
	return out, nil
}

func fillForms(doc []byte, ops []formOp) ([]byte, []error, error) {
	pctx, err := api.ReadContext(bytes.NewReader(doc), newConfiguration())
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindTemplateLoad, err, "failed to read template")
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindTemplateLoad, err, "failed to validate template")
	}
	warnings, err := applyForms(pctx, ops)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindTemplateLoad, err, "failed to read form")
	}
	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, nil, fmt.Errorf("failed to write filled form: %w", err)
	}
	return buf.Bytes(), warnings, nil
}

func stamp(doc []byte, ops []stampOp, fontName string) ([]byte, error) {
	wms, err := stampMap(ops, fontName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(doc), &buf, wms, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to draw values: %w", err)
	}
	return buf.Bytes(), nil
}
