// Package registry maps template content to its manifest. Templates are
// addressed by the SHA-256 digest of their bytes, so re-uploading identical
// content returns the stored manifest without re-running detection.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/markers"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// TemplateStore holds template bytes under their canonical storage name.
type TemplateStore interface {
	// PutTemplate stores data for id unless it is already present and
	// reports whether this call created it.
	PutTemplate(ctx context.Context, id string, data []byte) (bool, error)
	// GetTemplate fails with TemplateNotFound when no bytes exist for id.
	GetTemplate(ctx context.Context, id string) ([]byte, error)
}

// ManifestStore holds manifests by template id.
type ManifestStore interface {
	// GetManifest fails with TemplateNotFound when no manifest exists for id.
	GetManifest(ctx context.Context, id string) (*models.Manifest, error)
	// CreateManifest stores m unless a manifest for m.TemplateID exists and
	// reports whether this call created it.
	CreateManifest(ctx context.Context, m *models.Manifest) (bool, error)
	// PutManifest stores m unconditionally.
	PutManifest(ctx context.Context, m *models.Manifest) error
}

// ErrCorruptManifest marks a stored manifest that exists but does not
// decode. Stores wrap it in a StorageFailure error.
var ErrCorruptManifest = errors.New("stored manifest does not decode")

// Detector extracts fields from template bytes.
type Detector interface {
	Detect(data []byte) (*markers.Scan, error)
}

// Result is the outcome of Register.
type Result struct {
	Manifest *models.Manifest
	// Cached is true when the manifest was already stored and detection did not run.
	Cached bool
}

// Registry registers templates and serves their manifests and bytes.
type Registry struct {
	templates TemplateStore
	manifests ManifestStore
	detector  Detector
	logger    *slog.Logger
	group     singleflight.Group
}

// Digest returns the hex SHA-256 of data, the template id of that content.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// New returns a Registry over the given stores.
func New(templates TemplateStore, manifests ManifestStore, detector Detector, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{templates: templates, manifests: manifests, detector: detector, logger: logger}
}

// Register returns the manifest of data, detecting and persisting it first
// when the content has not been seen. Concurrent calls for identical
// content in this process share one registration; across processes the
// first manifest written wins and later writers return it.
func (r *Registry) Register(ctx context.Context, fileName string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindMalformedDocument, "template is empty")
	}
	id := Digest(data)
	v, err, _ := r.group.Do(id, func() (any, error) {
		return r.register(ctx, id, fileName, data)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (r *Registry) register(ctx context.Context, id, fileName string, data []byte) (*Result, error) {
	logCtx := r.logger.With("templateId", id, "fileName", fileName)

	replace := false
	existing, err := r.manifests.GetManifest(ctx, id)
	switch {
	case err == nil && existing.Validate() == nil:
		logCtx.Info("Template already registered.", "fields", len(existing.Fields))
		return &Result{Manifest: existing, Cached: true}, nil
	case err == nil:
		logCtx.Warn("Stored manifest is invalid; detecting again.", "error", existing.Validate())
		replace = true
	case errors.Is(err, ErrCorruptManifest):
		logCtx.Warn("Stored manifest does not decode; detecting again.", "error", err)
		replace = true
	case !errors.Is(err, apperrors.ErrTemplateNotFound):
		logCtx.Error("Failed to look up manifest.", "error", err)
		return nil, err
	}

	scan, err := r.detector.Detect(data)
	if err != nil {
		logCtx.Error("Marker detection failed.", "error", err)
		return nil, err
	}

	created, err := r.templates.PutTemplate(ctx, id, data)
	if err != nil {
		logCtx.Error("Failed to store template.", "error", err)
		return nil, err
	}
	logCtx.Info("Template bytes stored.", "created", created, "storageFileName", models.TemplateStorageName(id))

	m := models.NewManifest(id, fileName, scan.Pages)
	m.Fields = scan.Fields
	m.StorageFileName = models.TemplateStorageName(id)
	if err := m.Validate(); err != nil {
		logCtx.Error("Detected manifest is invalid.", "error", err)
		return nil, err
	}

	if replace {
		if err := r.manifests.PutManifest(ctx, m); err != nil {
			logCtx.Error("Failed to replace manifest.", "error", err)
			return nil, err
		}
		logCtx.Info("Manifest replaced.", "fields", len(m.Fields), "pages", m.Pages)
		return &Result{Manifest: m}, nil
	}

	created, err = r.manifests.CreateManifest(ctx, m)
	if err != nil {
		logCtx.Error("Failed to store manifest.", "error", err)
		return nil, err
	}
	if !created {
		logCtx.Warn("Another writer registered this template first; using its manifest.")
		winner, err := r.manifests.GetManifest(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read winning manifest: %w", err)
		}
		return &Result{Manifest: winner, Cached: true}, nil
	}
	logCtx.Info("Template registered.", "fields", len(m.Fields), "pages", m.Pages)
	return &Result{Manifest: m}, nil
}

// Manifest returns the stored manifest of id.
func (r *Registry) Manifest(ctx context.Context, id string) (*models.Manifest, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return r.manifests.GetManifest(ctx, id)
}

// Template returns the stored bytes of id.
func (r *Registry) Template(ctx context.Context, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return r.templates.GetTemplate(ctx, id)
}

// validateID accepts lowercase hex SHA-256 digests only. Ids reach file
// paths and object names, so anything else is rejected up front.
func validateID(id string) error {
	if len(id) != sha256.Size*2 {
		return apperrors.New(apperrors.KindValidation, "template id must be a %d-character hex digest", sha256.Size*2)
	}
	for _, c := range id {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return apperrors.New(apperrors.KindValidation, "template id must be a lowercase hex digest")
		}
	}
	return nil
}
