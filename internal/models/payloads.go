package models

// These structs define the JSON payloads of the template API and the
// workflow hand-off of the indexer.

// UploadTemplateResponse is returned by the template upload endpoint.
type UploadTemplateResponse struct {
	Success    bool      `json:"success"`
	TemplateID string    `json:"templateId"`
	Manifest   *Manifest `json:"manifest"`
	Cached     bool      `json:"cached"`
	Message    string    `json:"message,omitempty"`
}

// ManifestResponse is returned by the manifest lookup endpoint.
type ManifestResponse struct {
	Success  bool      `json:"success"`
	Manifest *Manifest `json:"manifest"`
}

// CalculationOptions tune the consumption formulas.
type CalculationOptions struct {
	HourlyMultiplier float64 `json:"hourlyMultiplier,omitempty"`
	SecondlyDivisor  float64 `json:"secondlyDivisor,omitempty"`
	Precision        *int    `json:"precision,omitempty"`
}

// FillOptions are the caller-supplied options of a generate request.
// Gap only affects detection and is accepted here for symmetry with uploads.
type FillOptions struct {
	FontSize           float64             `json:"fontSize,omitempty"`
	Gap                float64             `json:"gap,omitempty"`
	CalculationOptions *CalculationOptions `json:"calculationOptions,omitempty"`
}

// GenerateRequest is the input of the generate endpoint.
type GenerateRequest struct {
	TemplateID string         `json:"templateId"`
	Values     map[string]any `json:"values"`
	Options    FillOptions    `json:"options"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// TemplateIndexedPayload is the workflow argument sent after a template is indexed.
type TemplateIndexedPayload struct {
	TemplateID string `json:"templateId"`
	FileName   string `json:"fileName"`
	FieldCount int    `json:"fieldCount"`
	Cached     bool   `json:"cached"`
}
