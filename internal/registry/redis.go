package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// DefaultRedisPrefix namespaces manifest keys.
const DefaultRedisPrefix = "template:manifest:"

// RedisManifestStore keeps manifests as JSON strings, one key per template.
type RedisManifestStore struct {
	client *redis.Client
	prefix string
}

var _ ManifestStore = (*RedisManifestStore)(nil)

func NewRedisManifestStore(client *redis.Client, prefix string) *RedisManifestStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisManifestStore{client: client, prefix: prefix}
}

func (s *RedisManifestStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisManifestStore) GetManifest(ctx context.Context, id string) (*models.Manifest, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.New(apperrors.KindTemplateNotFound, "manifest for template %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read manifest %s", id)
	}
	var m models.Manifest
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, fmt.Errorf("%w: %w", ErrCorruptManifest, err), "manifest %s is corrupt", id)
	}
	return &m, nil
}

func (s *RedisManifestStore) CreateManifest(ctx context.Context, m *models.Manifest) (bool, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to encode manifest: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(m.TemplateID), data, 0).Result()
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, err, "failed to store manifest %s", m.TemplateID)
	}
	return ok, nil
}

func (s *RedisManifestStore) PutManifest(ctx context.Context, m *models.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.client.Set(ctx, s.key(m.TemplateID), data, 0).Err(); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, err, "failed to store manifest %s", m.TemplateID)
	}
	return nil
}
