package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/calc"
	"github.com/Lllllllleong/pdftemplatefill/internal/filler"
	"github.com/Lllllllleong/pdftemplatefill/internal/markers"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
	"github.com/Lllllllleong/pdftemplatefill/internal/registry"
)

// MaxUploadSize is the largest template accepted by Upload.
const MaxUploadSize = 10 << 20

// TemplateService registers templates and generates filled documents.
type TemplateService struct {
	registry *registry.Registry
	filler   *filler.Filler
	config   FillConfig
}

// NewTemplateService builds the service from environment configuration.
func NewTemplateService(ctx context.Context) (*TemplateService, error) {
	storageConfig, err := loadStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	detectionConfig, err := loadDetectionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	fillConfig, err := loadFillConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	reg, _, err := newRegistry(ctx, storageConfig, detectionConfig)
	if err != nil {
		return nil, err
	}
	slog.Info("Template service initialized.", "backend", storageConfig.Backend, "markerGap", detectionConfig.Gap, "fontSize", fillConfig.FontSize)
	return NewTemplateServiceWith(reg, filler.New(nil), *fillConfig), nil
}

// NewTemplateServiceWith assembles a service from explicit parts.
func NewTemplateServiceWith(reg *registry.Registry, f *filler.Filler, config FillConfig) *TemplateService {
	if config.FontSize <= 0 {
		config.FontSize = filler.DefaultFontSize
	}
	return &TemplateService{registry: reg, filler: f, config: config}
}

// Upload registers a template.
func (s *TemplateService) Upload(ctx context.Context, fileName string, data []byte) (*models.UploadTemplateResponse, error) {
	logCtx := slog.With("fileName", fileName, "size", len(data))
	if err := checkUpload(fileName, data); err != nil {
		logCtx.Warn("Rejected upload.", "error", err)
		return nil, err
	}
	res, err := s.registry.Register(ctx, fileName, data)
	if err != nil {
		logCtx.Error("Failed to register template.", "error", err)
		return nil, err
	}
	msg := "Template processed."
	if res.Cached {
		msg = "Template already registered."
	}
	logCtx.Info(msg, "templateId", res.Manifest.TemplateID, "cached", res.Cached)
	return &models.UploadTemplateResponse{
		Success:    true,
		TemplateID: res.Manifest.TemplateID,
		Manifest:   res.Manifest,
		Cached:     res.Cached,
		Message:    msg,
	}, nil
}

func checkUpload(fileName string, data []byte) error {
	if len(data) == 0 {
		return apperrors.New(apperrors.KindValidation, "no file uploaded")
	}
	if len(data) > MaxUploadSize {
		return apperrors.New(apperrors.KindValidation, "file exceeds the %d byte limit", MaxUploadSize)
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") && !bytes.HasPrefix(data, []byte("%PDF-")) {
		return apperrors.New(apperrors.KindValidation, "only PDF files are allowed")
	}
	return nil
}

// GetManifest returns the manifest of a registered template.
func (s *TemplateService) GetManifest(ctx context.Context, templateID string) (*models.ManifestResponse, error) {
	m, err := s.registry.Manifest(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return &models.ManifestResponse{Success: true, Manifest: m}, nil
}

// Generate fills a registered template with req.Values.
func (s *TemplateService) Generate(ctx context.Context, req *models.GenerateRequest) ([]byte, error) {
	if req.TemplateID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "templateId is required")
	}
	logCtx := slog.With("templateId", req.TemplateID)

	var (
		manifest *models.Manifest
		template []byte
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		m, err := s.registry.Manifest(gctx, req.TemplateID)
		manifest = m
		return err
	})
	eg.Go(func() error {
		b, err := s.registry.Template(gctx, req.TemplateID)
		template = b
		return err
	})
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to load template.", "error", err)
		return nil, err
	}

	if err := validateValues(req.Values, manifest); err != nil {
		return nil, err
	}
	values := req.Values
	if req.Options.CalculationOptions != nil {
		derived, err := applyCalculations(values, s.calcOptions(req.Options.CalculationOptions))
		if err != nil {
			return nil, err
		}
		values = derived
	}

	fontSize := s.config.FontSize
	if req.Options.FontSize > 0 {
		fontSize = req.Options.FontSize
	}
	out, err := s.filler.Fill(ctx, template, manifest, values, filler.Options{FontSize: fontSize, Fonts: s.config.Fonts})
	if err != nil {
		return nil, err
	}
	logCtx.Info("Document generated.", "bytes", len(out.PDF), "font", out.Font, "skippedFields", len(out.Warnings))
	return out.PDF, nil
}

// calcOptions overlays request options on the configured constants.
func (s *TemplateService) calcOptions(o *models.CalculationOptions) calc.Options {
	opts := s.config.Calculation
	if o.HourlyMultiplier > 0 {
		opts.HourlyMultiplier = o.HourlyMultiplier
	}
	if o.SecondlyDivisor > 0 {
		opts.SecondlyDivisor = o.SecondlyDivisor
	}
	if o.Precision != nil {
		opts.Precision = o.Precision
	}
	return opts
}

// validateValues requires every value bound to a manifest field to be a
// string or a number. Keys naming no field are not inspected.
func validateValues(values map[string]any, m *models.Manifest) error {
	for _, f := range m.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case string, json.Number, float64, float32, int, int32, int64, uint, uint64:
		default:
			return apperrors.New(apperrors.KindValidation, "value for %q must be a string or a number, got %T", f.Name, v)
		}
	}
	return nil
}

// applyCalculations derives max_hourly and msr_secondly from a numeric
// msr_daily. Values the caller supplied are kept. values is not modified.
func applyCalculations(values map[string]any, opts calc.Options) (map[string]any, error) {
	daily, ok := numeric(values[markers.FieldMSRDaily])
	if !ok {
		return values, nil
	}
	res, err := calc.Consumption(daily, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values)+2)
	for k, v := range values {
		out[k] = v
	}
	if _, set := out[markers.FieldMaxHourly]; !set {
		out[markers.FieldMaxHourly] = res.Hourly
	}
	if _, set := out[markers.FieldMSRSecondly]; !set {
		out[markers.FieldMSRSecondly] = res.Secondly
	}
	return out, nil
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
