package repository

import (
	"context"
	"fmt"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"gorm.io/gorm"
)

type RequestRepository interface {
	FindByCode(ctx context.Context, owner string, code int64) (*model.Request, error)
	// StageSaleMirror copies the sale code and status onto the request.
	StageSaleMirror(ctx context.Context, b *batch.Batch, owner string, code int64, saleCode *batch.PendingRef[int64], status model.SaleStatus) error
}

type requestRepo struct{ db *gorm.DB }

func NewRequestRepository(db *gorm.DB) RequestRepository { return &requestRepo{db: db} }

func (r *requestRepo) FindByCode(ctx context.Context, owner string, code int64) (*model.Request, error) {
	var req model.Request
	err := r.db.WithContext(ctx).Where("owner = ? AND code = ?", owner, code).First(&req).Error
	return &req, err
}

func (r *requestRepo) StageSaleMirror(ctx context.Context, b *batch.Batch, owner string, code int64, saleCode *batch.PendingRef[int64], status model.SaleStatus) error {
	req, err := r.FindByCode(ctx, owner, code)
	if err != nil {
		return fmt.Errorf("request %d: %w", code, err)
	}
	b.Stage(batch.PhaseLedger, "request", func(ctx context.Context, tx *gorm.DB) error {
		sc, err := saleCode.Value()
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&model.Request{}).Where("id = ?", req.ID).
			Updates(map[string]interface{}{"sale_code": sc, "status": string(status)}).Error
	})
	return nil
}
