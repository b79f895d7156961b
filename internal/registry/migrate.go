package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// MigrationReport summarises a Migrate run.
type MigrationReport struct {
	UpdatedManifests int      `json:"updatedManifests"`
	RenamedFiles     int      `json:"renamedFiles"`
	Warnings         []string `json:"warnings"`
}

// Migrate moves templates stored under arbitrary names to their canonical
// name and records storageFileName on manifests that lack it. A recorded
// storageFileName is never rewritten, and fields are never touched. It is
// safe to run repeatedly.
func (s *FileStore) Migrate(ctx context.Context) (*MigrationReport, error) {
	report := &MigrationReport{Warnings: []string{}}

	names, err := s.templateFiles()
	if err != nil {
		return nil, err
	}
	byDigest := make(map[string]string, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.templateDir(), name))
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to read %s: %v", name, err))
			continue
		}
		id := Digest(data)
		if prev, dup := byDigest[id]; !dup || name == models.TemplateStorageName(id) {
			byDigest[id] = name
		} else {
			s.logger.Warn("Duplicate template content.", "templateId", id, "kept", prev, "ignored", name)
		}
	}

	entries, err := os.ReadDir(s.manifestDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".json" {
			ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		logCtx := s.logger.With("templateId", id)
		m, err := s.GetManifest(ctx, id)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", id, err))
			continue
		}

		canonical := models.TemplateStorageName(id)
		if _, err := os.Stat(s.templatePath(id)); os.IsNotExist(err) {
			current, ok := byDigest[id]
			if !ok {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: no stored PDF matches this template", id))
				continue
			}
			if err := os.Rename(filepath.Join(s.templateDir(), current), s.templatePath(id)); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: failed to rename %s: %v", id, current, err))
				continue
			}
			logCtx.Info("Renamed template to canonical name.", "from", current, "to", canonical)
			report.RenamedFiles++
		}

		switch m.StorageFileName {
		case canonical:
		case "":
			m.StorageFileName = canonical
			if err := s.PutManifest(ctx, m); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			report.UpdatedManifests++
		default:
			logCtx.Warn("Manifest records a non-canonical storage name; leaving it.", "storageFileName", m.StorageFileName, "canonical", canonical)
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: storageFileName %q differs from %q", id, m.StorageFileName, canonical))
		}
	}

	s.logger.Info("Migration finished.", "updatedManifests", report.UpdatedManifests, "renamedFiles", report.RenamedFiles, "warnings", len(report.Warnings))
	return report, nil
}
