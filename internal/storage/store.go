package storage

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

type txKey struct{}

// Store is the gorm-backed repository for every engine entity. Methods pick
// up the transaction carried by ctx, so repository calls made inside
// Transaction commit or roll back together.
type Store struct {
	db      *gorm.DB
	wizards *cache.Cache
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, wizards: cache.New(5*time.Minute, 10*time.Minute)}
}

// DB exposes the underlying handle for wiring and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn in a database transaction. Nested calls join the
// outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

func inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// notFound maps gorm's missing-row error onto the engine taxonomy and wraps
// anything else with the operation name.
func notFound(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return duel.NotFound("%s %s not found", what, id)
	}
	return errors.WrapIf(err, "load "+what)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
