package repository

import (
	"context"
	"time"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRefs carries the forward references a staged sale document
// resolves at commit time.
type DocumentRefs struct {
	IsNew bool
	Code  *batch.PendingRef[int64]
	// BillCode is nil when the sale has no receivable bill.
	BillCode *batch.PendingRef[int64]
	// RegisterDate is set for new sales only.
	RegisterDate *batch.PendingRef[time.Time]
}

// Apply copies the resolved values into sale. Only valid inside a commit or
// after it.
func (r DocumentRefs) Apply(sale *model.Sale) error {
	if r.Code != nil {
		code, err := r.Code.Value()
		if err != nil {
			return err
		}
		sale.Code = code
	}
	if r.BillCode != nil {
		code, err := r.BillCode.Value()
		if err != nil {
			return err
		}
		sale.BillToReceiveCode = &code
	}
	if r.RegisterDate != nil {
		at, err := r.RegisterDate.Value()
		if err != nil {
			return err
		}
		sale.RegisterDate = &at
	}
	return nil
}

type SaleRepository interface {
	FindByID(ctx context.Context, owner string, id uuid.UUID) (*model.Sale, error)
	FindByCode(ctx context.Context, owner string, code int64) (*model.Sale, error)
	// StageSave stages the create or update of the sale document. Updates are
	// keyed by id, or by (owner, code) when the id is unknown.
	StageSave(b *batch.Batch, sale model.Sale, refs DocumentRefs)
	DB() *gorm.DB // exposes the DB so services can open batches
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) FindByID(ctx context.Context, owner string, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Where("id = ? AND owner = ?", id, owner).First(&s).Error
	return &s, err
}

func (r *saleRepo) FindByCode(ctx context.Context, owner string, code int64) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Where("owner = ? AND code = ?", owner, code).First(&s).Error
	return &s, err
}

func (r *saleRepo) StageSave(b *batch.Batch, sale model.Sale, refs DocumentRefs) {
	b.Stage(batch.PhaseDocument, "sale", func(ctx context.Context, tx *gorm.DB) error {
		if err := refs.Apply(&sale); err != nil {
			return err
		}
		if refs.IsNew {
			return tx.WithContext(ctx).Create(&sale).Error
		}

		q := tx.WithContext(ctx).Model(&model.Sale{})
		if sale.ID != uuid.Nil {
			q = q.Where("id = ? AND owner = ?", sale.ID, sale.Owner)
		} else {
			q = q.Where("owner = ? AND code = ?", sale.Owner, sale.Code)
		}
		res := q.Select("*").Omit("id", "code", "owner", "register_date").Updates(&sale)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
