package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdftemplatefill/internal/markers"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
	"github.com/Lllllllleong/pdftemplatefill/internal/registry"
)

func newTestIndexer(t *testing.T, objects map[string][]byte) (*IndexerFunction, *[][]byte) {
	t.Helper()
	store, err := registry.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	var triggered [][]byte
	f := &IndexerFunction{
		registry: registry.New(store, store, markers.NewDetector(markers.Options{}), nil),
		fetch: func(_ context.Context, bucket, object string) ([]byte, error) {
			data, ok := objects[bucket+"/"+object]
			if !ok {
				return nil, errors.New("object not found")
			}
			return data, nil
		},
		trigger: func(_ context.Context, payload []byte) error {
			triggered = append(triggered, payload)
			return nil
		},
	}
	return f, &triggered
}

func TestIndexerRegistersAndHandsOff(t *testing.T) {
	f, triggered := newTestIndexer(t, map[string][]byte{"uploads/in/pump.pdf": pumpTemplate()})
	ctx := context.Background()

	require.NoError(t, f.Process(ctx, GCSEvent{Bucket: "uploads", Name: "in/pump.pdf"}))
	require.NoError(t, f.Process(ctx, GCSEvent{Bucket: "uploads", Name: "in/pump.pdf"}))
	require.Len(t, *triggered, 2)

	var first, second models.TemplateIndexedPayload
	require.NoError(t, json.Unmarshal((*triggered)[0], &first))
	require.NoError(t, json.Unmarshal((*triggered)[1], &second))
	assert.Equal(t, models.TemplateIndexedPayload{
		TemplateID: registry.Digest(pumpTemplate()),
		FileName:   "pump.pdf",
		FieldCount: 4,
	}, first)
	assert.True(t, second.Cached)
}

func TestIndexerIgnoresNonPDF(t *testing.T) {
	f, triggered := newTestIndexer(t, nil)
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "notes.txt"}))
	assert.Empty(t, *triggered)
}

func TestIndexerPropagatesFailures(t *testing.T) {
	f, triggered := newTestIndexer(t, map[string][]byte{"uploads/bad.pdf": []byte("not a pdf")})
	assert.Error(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "missing.pdf"}))
	assert.Error(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "bad.pdf"}))
	assert.Empty(t, *triggered)
}

func TestIndexerWithoutWorkflow(t *testing.T) {
	f, _ := newTestIndexer(t, map[string][]byte{"uploads/pump.pdf": pumpTemplate()})
	f.trigger = nil
	assert.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "pump.pdf"}))
}
