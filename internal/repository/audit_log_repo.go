package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is one structured audit record keyed by a (possibly forward)
// reference code.
type AuditEntry struct {
	Owner      string
	Collection string
	Action     model.AuditAction
	Reference  *batch.PendingRef[int64]
	Operator   model.Person
	Data       interface{}
}

type AuditLogRepository interface {
	StageEntry(ctx context.Context, b *batch.Batch, entry AuditEntry) error
}

type auditLogRepo struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository { return &auditLogRepo{db: db} }

func (r *auditLogRepo) StageEntry(_ context.Context, b *batch.Batch, entry AuditEntry) error {
	if entry.Reference == nil {
		return errors.New("audit log: missing reference")
	}
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return err
	}
	stamp := b.Timestamp()
	b.Stage(batch.PhaseLedger, "audit_log", func(ctx context.Context, tx *gorm.DB) error {
		code, err := entry.Reference.Value()
		if err != nil {
			return err
		}
		at, err := stamp.Value()
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&model.AuditLog{
			Owner:         entry.Owner,
			Collection:    entry.Collection,
			Action:        entry.Action,
			ReferenceCode: code,
			Operator:      entry.Operator,
			Data:          datatypes.JSON(data),
			CreatedAt:     at,
		}).Error
	})
	return nil
}
