package repository

import (
	"context"
	"errors"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockEntry is one inventory adjustment staged by a settlement.
type StockEntry struct {
	Owner     string
	BranchID  *string
	Action    model.StockAction
	Deltas    []model.StockDelta
	Reference *batch.PendingRef[int64]
	Operator  model.Person
}

// StockRepository stages stock counter increments and the matching movement
// rows. Counters are updated with relative increments so concurrent commits
// commute.
type StockRepository interface {
	FindProduct(ctx context.Context, owner, code string) (*model.Product, error)
	StageDeltas(ctx context.Context, b *batch.Batch, entry StockEntry) error
	// StageOperatorChange rewrites the operator recorded on the movements of a sale.
	StageOperatorChange(ctx context.Context, b *batch.Batch, owner string, saleCode int64, operator model.Person) error
}

type stockRepo struct {
	db          *gorm.DB
	multiBranch bool
}

// NewStockRepository returns the gorm stock adapter. In multi-branch mode
// deltas carrying a branch go to the per-branch counters.
func NewStockRepository(db *gorm.DB, multiBranch bool) StockRepository {
	return &stockRepo{db: db, multiBranch: multiBranch}
}

func (r *stockRepo) FindProduct(ctx context.Context, owner, code string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("owner = ? AND code = ?", owner, code).First(&p).Error
	return &p, err
}

func (r *stockRepo) StageDeltas(_ context.Context, b *batch.Batch, entry StockEntry) error {
	if entry.Reference == nil {
		return errors.New("stock: missing sale reference")
	}
	perBranch := r.multiBranch && entry.BranchID != nil

	b.Stage(batch.PhaseLedger, "stock", func(ctx context.Context, tx *gorm.DB) error {
		code, err := entry.Reference.Value()
		if err != nil {
			return err
		}
		tx = tx.WithContext(ctx)
		for _, d := range entry.Deltas {
			if perBranch {
				err = r.incrementBranch(tx, entry.Owner, *entry.BranchID, d)
			} else {
				err = r.incrementProduct(tx, entry.Owner, d)
			}
			if err != nil {
				return err
			}
			mov := &model.StockMovement{
				Owner:         entry.Owner,
				ProductCode:   d.ProductCode,
				BranchID:      entry.BranchID,
				Action:        entry.Action,
				Quantity:      d.Quantity,
				ReferenceCode: code,
				Operator:      entry.Operator,
			}
			if err := tx.Create(mov).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

func (r *stockRepo) incrementProduct(tx *gorm.DB, owner string, d model.StockDelta) error {
	res := tx.Model(&model.Product{}).
		Where("owner = ? AND code = ?", owner, d.ProductCode).
		Update("quantity", gorm.Expr("quantity + ?", d.Quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("stock: unknown product " + d.ProductCode)
	}
	return nil
}

func (r *stockRepo) incrementBranch(tx *gorm.DB, owner, branchID string, d model.StockDelta) error {
	row := &model.ProductStock{Owner: owner, ProductCode: d.ProductCode, BranchID: branchID, Quantity: d.Quantity}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}, {Name: "product_code"}, {Name: "branch_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("product_stocks.quantity + ?", d.Quantity),
		}),
	}).Create(row).Error
}

func (r *stockRepo) StageOperatorChange(_ context.Context, b *batch.Batch, owner string, saleCode int64, operator model.Person) error {
	if saleCode == 0 {
		return errors.New("stock: sale code is required")
	}
	b.Stage(batch.PhaseLedger, "stock_operator", func(ctx context.Context, tx *gorm.DB) error {
		return tx.WithContext(ctx).Model(&model.StockMovement{}).
			Where("owner = ? AND reference_code = ?", owner, saleCode).
			Updates(map[string]interface{}{
				"operator_id":   operator.ID,
				"operator_name": operator.Name,
			}).Error
	})
	return nil
}
