package repository

import (
	"context"
	"fmt"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"gorm.io/gorm"
)

// WorkOrderUpdate mirrors a sale's completion or cancellation on the work
// order it was billed from.
type WorkOrderUpdate struct {
	Owner         string
	Code          int64
	SaleCode      *batch.PendingRef[int64]
	ServiceStatus string
	PaymentStatus string
}

type WorkOrderRepository interface {
	FindByCode(ctx context.Context, owner string, code int64) (*model.WorkOrder, error)
	StageStatus(ctx context.Context, b *batch.Batch, u WorkOrderUpdate) error
}

type workOrderRepo struct{ db *gorm.DB }

func NewWorkOrderRepository(db *gorm.DB) WorkOrderRepository { return &workOrderRepo{db: db} }

func (r *workOrderRepo) FindByCode(ctx context.Context, owner string, code int64) (*model.WorkOrder, error) {
	var o model.WorkOrder
	err := r.db.WithContext(ctx).Where("owner = ? AND code = ?", owner, code).First(&o).Error
	return &o, err
}

func (r *workOrderRepo) StageStatus(ctx context.Context, b *batch.Batch, u WorkOrderUpdate) error {
	order, err := r.FindByCode(ctx, u.Owner, u.Code)
	if err != nil {
		return fmt.Errorf("work order %d: %w", u.Code, err)
	}
	b.Stage(batch.PhaseLedger, "work_order", func(ctx context.Context, tx *gorm.DB) error {
		fields := map[string]interface{}{
			"service_status": u.ServiceStatus,
			"payment_status": u.PaymentStatus,
		}
		if u.SaleCode != nil {
			code, err := u.SaleCode.Value()
			if err != nil {
				return err
			}
			fields["sale_code"] = code
		}
		return tx.WithContext(ctx).Model(&model.WorkOrder{}).Where("id = ?", order.ID).Updates(fields).Error
	})
	return nil
}
