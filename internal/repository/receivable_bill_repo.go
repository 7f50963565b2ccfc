package repository

import (
	"context"
	"errors"
	"fmt"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceivableBillRepository interface {
	FindByCode(ctx context.Context, owner string, code int64) (*model.ReceivableBill, error)
	// StageCreate stages a new bill; code is the bill's own forward code and
	// reference the sale code it belongs to.
	StageCreate(ctx context.Context, b *batch.Batch, bill model.ReceivableBill, code, reference *batch.PendingRef[int64]) error
	StageUpdate(ctx context.Context, b *batch.Batch, bill model.ReceivableBill) error
	StageCancel(ctx context.Context, b *batch.Batch, owner string, code int64) error
}

type receivableBillRepo struct{ db *gorm.DB }

func NewReceivableBillRepository(db *gorm.DB) ReceivableBillRepository {
	return &receivableBillRepo{db: db}
}

func (r *receivableBillRepo) FindByCode(ctx context.Context, owner string, code int64) (*model.ReceivableBill, error) {
	var bill model.ReceivableBill
	err := r.db.WithContext(ctx).Where("owner = ? AND code = ?", owner, code).First(&bill).Error
	return &bill, err
}

func (r *receivableBillRepo) StageCreate(_ context.Context, b *batch.Batch, bill model.ReceivableBill, code, reference *batch.PendingRef[int64]) error {
	if code == nil || reference == nil {
		return errors.New("receivable bill: missing forward reference")
	}
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	b.Stage(batch.PhaseLedger, "receivable_bill", func(ctx context.Context, tx *gorm.DB) error {
		var err error
		if bill.Code, err = code.Value(); err != nil {
			return err
		}
		if bill.ReferenceCode, err = reference.Value(); err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&bill).Error
	})
	return nil
}

func (r *receivableBillRepo) StageUpdate(ctx context.Context, b *batch.Batch, bill model.ReceivableBill) error {
	current, err := r.FindByCode(ctx, bill.Owner, bill.Code)
	if err != nil {
		return fmt.Errorf("receivable bill %d: %w", bill.Code, err)
	}
	if current.Status == model.BillCanceled {
		return fmt.Errorf("receivable bill %d is canceled", bill.Code)
	}
	b.Stage(batch.PhaseLedger, "receivable_bill", func(ctx context.Context, tx *gorm.DB) error {
		return tx.WithContext(ctx).Model(&model.ReceivableBill{}).
			Where("id = ?", current.ID).
			Updates(map[string]interface{}{
				"debtor_id":          bill.Debtor.ID,
				"debtor_name":        bill.Debtor.Name,
				"installments":       bill.Installments,
				"total_installments": bill.TotalInstallments,
				"amount":             bill.Amount,
			}).Error
	})
	return nil
}

func (r *receivableBillRepo) StageCancel(ctx context.Context, b *batch.Batch, owner string, code int64) error {
	current, err := r.FindByCode(ctx, owner, code)
	if err != nil {
		return fmt.Errorf("receivable bill %d: %w", code, err)
	}
	b.Stage(batch.PhaseLedger, "receivable_bill_cancel", func(ctx context.Context, tx *gorm.DB) error {
		return tx.WithContext(ctx).Model(&model.ReceivableBill{}).
			Where("id = ?", current.ID).
			Update("status", model.BillCanceled).Error
	})
	return nil
}
