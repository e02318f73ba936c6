package storage

import (
	"context"

	"emperror.dev/errors"
	"gorm.io/gorm/clause"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

// BlobStore keeps illustrations in the database.
type BlobStore struct {
	store *Store
}

func (s *Store) Illustrations() *BlobStore { return &BlobStore{store: s} }

func (b *BlobStore) Put(ctx context.Context, key string, png []byte) error {
	err := b.store.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"image_png"}),
	}).Create(&duel.IllustrationBlob{Key: key, ImagePNG: png}).Error
	return errors.WrapIf(err, "store illustration")
}

func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob duel.IllustrationBlob
	if err := b.store.conn(ctx).Where("storage_key = ?", key).First(&blob).Error; err != nil {
		return nil, notFound(err, "illustration", key)
	}
	return blob.ImagePNG, nil
}
