package filler

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// DefaultFontSize applies when neither the fill options nor the field carry a size.
const DefaultFontSize = 10.0

// stampOp draws text on a page at an absolute anchor.
type stampOp struct {
	field string
	page  int
	x, y  float64
	size  float64
	text  string
}

// formOp sets the value of an interactive form field.
type formOp struct {
	field        string
	acroformName string
	text         string
}

type plan struct {
	stamps []stampOp
	forms  []formOp
}

func (p plan) empty() bool {
	return len(p.stamps) == 0 && len(p.forms) == 0
}

// texts returns every string the plan will render, stamped or not.
func (p plan) texts() []string {
	out := make([]string, 0, len(p.stamps)+len(p.forms))
	for _, s := range p.stamps {
		out = append(out, s.text)
	}
	for _, f := range p.forms {
		out = append(out, f.text)
	}
	return out
}

// buildPlan pairs manifest fields with values. Fields without a value, or
// with a nil value, produce no operation; keys naming no field are ignored.
func buildPlan(m *models.Manifest, values map[string]any, fontSize float64) (plan, error) {
	var p plan
	for _, f := range m.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		if f.Page < 0 || f.Page >= m.Pages {
			return plan{}, apperrors.New(apperrors.KindTemplateLoad, "field %q targets page %d of a %d-page template", f.Name, f.Page, m.Pages)
		}
		text, err := Stringify(v)
		if err != nil {
			return plan{}, apperrors.Wrap(apperrors.KindValidation, err, "field %q", f.Name)
		}
		switch f.Strategy {
		case models.StrategyText:
			if f.Draw == nil {
				return plan{}, apperrors.New(apperrors.KindValidation, "field %q has no draw anchor", f.Name)
			}
			if text == "" {
				continue
			}
			p.stamps = append(p.stamps, stampOp{
				field: f.Name,
				page:  f.Page,
				x:     f.Draw.X,
				y:     f.Draw.Y,
				size:  effectiveSize(f, fontSize),
				text:  text,
			})
		case models.StrategyAcroForm:
			p.forms = append(p.forms, formOp{field: f.Name, acroformName: f.AcroFormName, text: text})
		default:
			return plan{}, apperrors.New(apperrors.KindValidation, "field %q: unknown strategy %q", f.Name, f.Strategy)
		}
	}
	return p, nil
}

// effectiveSize prefers the fill-wide override, then the size stored on
// the field, then DefaultFontSize.
func effectiveSize(f models.Field, override float64) float64 {
	if override > 0 {
		return override
	}
	if f.Draw != nil && f.Draw.Size > 0 {
		return f.Draw.Size
	}
	return DefaultFontSize
}

// Stringify renders a scalar value the way it is drawn: strings verbatim,
// numbers in their shortest decimal form.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("value %v is not a finite number", t)
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}
