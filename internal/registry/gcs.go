package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/gcp"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// GCSTemplateStore keeps template bytes as objects of one bucket.
type GCSTemplateStore struct {
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

var _ TemplateStore = (*GCSTemplateStore)(nil)

func NewGCSTemplateStore(client *storage.Client, bucket string, logger *slog.Logger) *GCSTemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSTemplateStore{bucket: client.Bucket(bucket), name: bucket, logger: logger}
}

func (s *GCSTemplateStore) PutTemplate(ctx context.Context, id string, data []byte) (bool, error) {
	created, err := gcp.SaveToGCSAtomically(ctx, s.bucket, models.TemplateStorageName(id), data, "application/pdf")
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, err, "failed to store template %s in gs://%s", id, s.name)
	}
	return created, nil
}

// GetTemplate reads the canonical object of id, falling back like
// FileStore.GetTemplate when it is missing.
func (s *GCSTemplateStore) GetTemplate(ctx context.Context, id string) ([]byte, error) {
	data, err := gcp.ReadObject(ctx, s.bucket, models.TemplateStorageName(id))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read template %s from gs://%s", id, s.name)
	}

	names, err := s.pdfObjects(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to list gs://%s", s.name)
	}
	logCtx := s.logger.With("templateId", id, "gcsBucket", s.name)
	fallback := ""
	for _, name := range names {
		if strings.Contains(name, id) {
			logCtx.Warn("Canonical template missing; using object containing the digest.", "gcsObject", name)
			fallback = name
			break
		}
	}
	if fallback == "" && len(names) > 0 {
		fallback = names[0]
		logCtx.Warn("Canonical template missing; falling back to first available PDF.", "gcsObject", fallback)
	}
	if fallback == "" {
		return nil, apperrors.New(apperrors.KindTemplateNotFound, "template %s not found", id)
	}
	data, err = gcp.ReadObject(ctx, s.bucket, fallback)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read %s", fallback)
	}
	return data, nil
}

func (s *GCSTemplateStore) pdfObjects(ctx context.Context) ([]string, error) {
	var names []string
	it := s.bucket.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(strings.ToLower(attrs.Name), ".pdf") {
			names = append(names, attrs.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
