package repository

import (
	"context"
	"errors"

	"gestorpos/internal/batch"

	"gorm.io/gorm"
)

// Counter collections.
const (
	CollectionSales           = "sales"
	CollectionReceivableBills = "receivable_bills"
)

// CounterRepository hands out per-owner sequential codes. Next must run inside
// the commit transaction so a rolled back batch never consumes a code.
type CounterRepository interface {
	batch.Sequencer
}

type counterRepo struct{}

func NewCounterRepository() CounterRepository { return &counterRepo{} }

func (r *counterRepo) Next(ctx context.Context, tx *gorm.DB, owner, collection string) (int64, error) {
	if tx == nil {
		return 0, errors.New("counter: a transaction is required")
	}
	// Row-level upsert; concurrent commits serialize on the counter row.
	var value int64
	err := tx.WithContext(ctx).Raw(`
INSERT INTO counters (owner, collection, value) VALUES (?, ?, 1)
ON CONFLICT (owner, collection) DO UPDATE SET value = counters.value + 1
RETURNING value`, owner, collection).Scan(&value).Error
	return value, err
}
