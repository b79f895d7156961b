package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

func TestMigrateRenamesAndBackfills(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, nil)
	require.NoError(t, err)
	ctx := context.Background()

	legacy := sampleTemplate()
	legacyID := Digest(legacy)
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "upload-1699999.pdf"), legacy, 0o644))
	m := models.NewManifest(legacyID, "pump.pdf", 1)
	m.Fields = append(m.Fields, models.NewTextField("msr_daily", "msr:", 0,
		models.Box{X: 50, Y: 700, W: 24, H: 10}, models.Draw{X: 80, Y: 700, Gap: 6, Font: "Helvetica", Size: 10}))
	require.NoError(t, store.PutManifest(ctx, m))

	orphan := models.NewManifest(Digest([]byte("gone")), "gone.pdf", 1)
	require.NoError(t, store.PutManifest(ctx, orphan))

	report, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RenamedFiles)
	assert.Equal(t, 1, report.UpdatedManifests)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], orphan.TemplateID)

	data, err := os.ReadFile(filepath.Join(root, "templates", models.TemplateStorageName(legacyID)))
	require.NoError(t, err)
	assert.Equal(t, legacy, data)

	got, err := store.GetManifest(ctx, legacyID)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStorageName(legacyID), got.StorageFileName)
	assert.Equal(t, m.Fields, got.Fields)

	again, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.RenamedFiles)
	assert.Zero(t, again.UpdatedManifests)
}

func TestMigrateKeepsRecordedStorageName(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, nil)
	require.NoError(t, err)
	ctx := context.Background()

	data := sampleTemplate()
	id := Digest(data)
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", models.TemplateStorageName(id)), data, 0o644))
	m := models.NewManifest(id, "pump.pdf", 1)
	m.StorageFileName = "legacy/pump-v1.pdf"
	require.NoError(t, store.PutManifest(ctx, m))

	report, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.UpdatedManifests)
	assert.Zero(t, report.RenamedFiles)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "legacy/pump-v1.pdf")

	got, err := store.GetManifest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "legacy/pump-v1.pdf", got.StorageFileName)
}
