package registry

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
)

// FirestoreManifestStore keeps one document per template, keyed by template id.
type FirestoreManifestStore struct {
	collection *firestore.CollectionRef
}

var _ ManifestStore = (*FirestoreManifestStore)(nil)

func NewFirestoreManifestStore(client *firestore.Client, collection string) *FirestoreManifestStore {
	return &FirestoreManifestStore{collection: client.Collection(collection)}
}

func (s *FirestoreManifestStore) GetManifest(ctx context.Context, id string) (*models.Manifest, error) {
	snap, err := s.collection.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, apperrors.New(apperrors.KindTemplateNotFound, "manifest for template %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, err, "failed to read manifest %s", id)
	}
	var m models.Manifest
	if err := snap.DataTo(&m); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, fmt.Errorf("%w: %w", ErrCorruptManifest, err), "manifest %s is corrupt", id)
	}
	return &m, nil
}

// CreateManifest relies on Firestore's create precondition, so concurrent
// writers of the same template id see exactly one success.
func (s *FirestoreManifestStore) CreateManifest(ctx context.Context, m *models.Manifest) (bool, error) {
	_, err := s.collection.Doc(m.TemplateID).Create(ctx, m)
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, err, "failed to store manifest %s", m.TemplateID)
	}
	return true, nil
}

func (s *FirestoreManifestStore) PutManifest(ctx context.Context, m *models.Manifest) error {
	if _, err := s.collection.Doc(m.TemplateID).Set(ctx, m); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, fmt.Errorf("set: %w", err), "failed to store manifest %s", m.TemplateID)
	}
	return nil
}
