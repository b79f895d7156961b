package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
)

// ManifestVersion is the schema version written by this code.
const ManifestVersion = 1

// Strategy is the fill mechanism of a Field.
type Strategy string

const (
	// StrategyText draws the value at computed page coordinates.
	StrategyText Strategy = "text"
	// StrategyAcroForm sets the value of an interactive form field.
	StrategyAcroForm Strategy = "acroform"
)

func (s *Strategy) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch Strategy(raw) {
	case StrategyText, StrategyAcroForm:
		*s = Strategy(raw)
		return nil
	}
	return fmt.Errorf("unknown field strategy %q", raw)
}

// Box is the estimated bounding box of a marker's glyph run.
type Box struct {
	X float64 `json:"x" firestore:"x"`
	Y float64 `json:"y" firestore:"y"`
	W float64 `json:"w" firestore:"w"`
	H float64 `json:"h" firestore:"h"`
}

// Draw holds the anchor and text hints for a Text field.
type Draw struct {
	X    float64 `json:"x" firestore:"x"`
	Y    float64 `json:"y" firestore:"y"`
	Gap  float64 `json:"gap" firestore:"gap"`
	Font string  `json:"font" firestore:"font"`
	Size float64 `json:"size" firestore:"size"`
}

// Field is one named fill target. Build it with NewTextField or
// NewAcroFormField; the strategy-specific members are set accordingly.
type Field struct {
	Name     string   `json:"name" firestore:"name"`
	Strategy Strategy `json:"strategy" firestore:"strategy"`
	Marker   string   `json:"marker" firestore:"marker"`
	Page     int      `json:"page" firestore:"page"`

	// Text strategy.
	MarkerBox *Box  `json:"markerBox,omitempty" firestore:"markerBox,omitempty"`
	Draw      *Draw `json:"draw,omitempty" firestore:"draw,omitempty"`

	// AcroForm strategy.
	AcroFormName string `json:"acroformName,omitempty" firestore:"acroformName,omitempty"`
}

// NewTextField returns a Field drawn at draw's anchor on page.
func NewTextField(name, marker string, page int, box Box, draw Draw) Field {
	return Field{
		Name:      name,
		Strategy:  StrategyText,
		Marker:    marker,
		Page:      page,
		MarkerBox: &box,
		Draw:      &draw,
	}
}

// NewAcroFormField returns a Field that populates the interactive field acroformName.
func NewAcroFormField(name, marker string, page int, acroformName string) Field {
	return Field{
		Name:         name,
		Strategy:     StrategyAcroForm,
		Marker:       marker,
		Page:         page,
		AcroFormName: acroformName,
	}
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field without name")
	}
	if f.Page < 0 {
		return fmt.Errorf("field %q: negative page %d", f.Name, f.Page)
	}
	switch f.Strategy {
	case StrategyText:
		if f.Draw == nil || f.MarkerBox == nil {
			return fmt.Errorf("field %q: text strategy requires markerBox and draw", f.Name)
		}
		if f.AcroFormName != "" {
			return fmt.Errorf("field %q: text strategy cannot carry acroformName", f.Name)
		}
	case StrategyAcroForm:
		if f.AcroFormName == "" {
			return fmt.Errorf("field %q: acroform strategy requires acroformName", f.Name)
		}
		if f.Draw != nil {
			return fmt.Errorf("field %q: acroform strategy cannot carry draw", f.Name)
		}
	default:
		return fmt.Errorf("field %q: unknown strategy %q", f.Name, f.Strategy)
	}
	return nil
}

// Manifest is the persisted field layout of one template, keyed by the
// SHA-256 digest of the template bytes.
type Manifest struct {
	TemplateID      string    `json:"templateId" firestore:"templateId"`
	FileName        string    `json:"fileName" firestore:"fileName"`
	Pages           int       `json:"pages" firestore:"pages"`
	Fields          []Field   `json:"fields" firestore:"fields"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
	Version         int       `json:"version" firestore:"version"`
	StorageFileName string    `json:"storageFileName,omitempty" firestore:"storageFileName,omitempty"`
}

// NewManifest returns a manifest with no fields.
func NewManifest(templateID, fileName string, pages int) *Manifest {
	return &Manifest{
		TemplateID: templateID,
		FileName:   fileName,
		Pages:      pages,
		Fields:     []Field{},
		CreatedAt:  time.Now().UTC(),
		Version:    ManifestVersion,
	}
}

// Validate checks identity fields, the page count, field shape and name
// uniqueness.
func (m *Manifest) Validate() error {
	if m == nil {
		return apperrors.New(apperrors.KindValidation, "manifest is nil")
	}
	if m.TemplateID == "" || m.FileName == "" {
		return apperrors.New(apperrors.KindValidation, "manifest requires templateId and fileName")
	}
	if m.Pages < 1 {
		return apperrors.New(apperrors.KindValidation, "manifest %s: pages must be at least 1, got %d", m.TemplateID, m.Pages)
	}
	if m.Fields == nil {
		return apperrors.New(apperrors.KindValidation, "manifest %s: fields must be a list", m.TemplateID)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	for _, f := range m.Fields {
		if err := f.validate(); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "manifest %s", m.TemplateID)
		}
		if _, dup := seen[f.Name]; dup {
			return apperrors.New(apperrors.KindValidation, "manifest %s: duplicate field name %q", m.TemplateID, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// FindField returns the field called name.
func (m *Manifest) FindField(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TemplateStorageName is the canonical storage name of a template's bytes.
func TemplateStorageName(templateID string) string {
	return "template_" + templateID + ".pdf"
}
