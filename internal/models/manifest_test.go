package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textField(name string) Field {
	return NewTextField(name, "msr:", 0, Box{X: 10, Y: 700, W: 24, H: 10}, Draw{X: 40, Y: 700, Gap: 6, Font: "Helvetica", Size: 10})
}

func TestNewManifestIsValid(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 2)
	require.NoError(t, m.Validate())
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Empty(t, m.Fields)
	assert.Equal(t, 2, m.Pages)
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	m := NewManifest("", "a.pdf", 1)
	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	m = NewManifest("abc", "", 1)
	assert.Error(t, m.Validate())
}

func TestValidateRejectsEmptyDocument(t *testing.T) {
	for _, pages := range []int{0, -1} {
		m := NewManifest("abc", "a.pdf", pages)
		assert.Equal(t, pages, m.Pages)
		err := m.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	}
}

func TestValidateRejectsNilFields(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 1)
	m.Fields = nil
	assert.Error(t, m.Validate())
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 1)
	m.Fields = []Field{textField("msr_daily"), textField("msr_daily")}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field name")
}

func TestValidateChecksStrategyPayload(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 1)
	m.Fields = []Field{{Name: "x", Strategy: StrategyText}}
	assert.Error(t, m.Validate())

	m.Fields = []Field{{Name: "x", Strategy: StrategyAcroForm}}
	assert.Error(t, m.Validate())

	m.Fields = []Field{NewAcroFormField("x", "", 0, "customer")}
	assert.NoError(t, m.Validate())
}

func TestFindField(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 1)
	m.Fields = []Field{textField("msr_daily"), textField("pump_model")}

	f, ok := m.FindField("pump_model")
	require.True(t, ok)
	assert.Equal(t, "pump_model", f.Name)

	_, ok = m.FindField("nope")
	assert.False(t, ok)
}

func TestStrategyRejectsUnknownValue(t *testing.T) {
	var f Field
	err := json.Unmarshal([]byte(`{"name":"x","strategy":"ocr","marker":"","page":0}`), &f)
	assert.Error(t, err)
}

func TestManifestJSONShape(t *testing.T) {
	m := NewManifest("abc", "a.pdf", 1)
	m.Fields = []Field{textField("msr_daily")}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	field := raw["fields"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", field["strategy"])
	assert.Contains(t, field, "markerBox")
	assert.NotContains(t, field, "acroformName")
	assert.NotContains(t, raw, "storageFileName")
}

func TestTemplateStorageName(t *testing.T) {
	assert.Equal(t, "template_abc.pdf", TemplateStorageName("abc"))
}
