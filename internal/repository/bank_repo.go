package repository

import (
	"context"
	"errors"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingDraft is a bank posting waiting for its sale code.
type PostingDraft struct {
	Owner       string
	Account     model.BankAccountRef
	Direction   model.PostingDirection
	Value       decimal.Decimal
	Uninvoiced  bool
	PaymentCode string
	Operation   string
}

type BankRepository interface {
	FindDefaultAccount(ctx context.Context, owner string) (*model.BankAccount, error)
	// StagePostings stages one immutable posting per draft and moves the
	// account balances by the signed values.
	StagePostings(ctx context.Context, b *batch.Batch, postings []PostingDraft, reference *batch.PendingRef[int64]) error
}

type bankRepo struct{ db *gorm.DB }

func NewBankRepository(db *gorm.DB) BankRepository { return &bankRepo{db: db} }

func (r *bankRepo) FindDefaultAccount(ctx context.Context, owner string) (*model.BankAccount, error) {
	var a model.BankAccount
	err := r.db.WithContext(ctx).Where("owner = ? AND is_default = true", owner).First(&a).Error
	return &a, err
}

func (r *bankRepo) StagePostings(_ context.Context, b *batch.Batch, postings []PostingDraft, reference *batch.PendingRef[int64]) error {
	if reference == nil {
		return errors.New("bank: missing sale reference")
	}
	for _, p := range postings {
		if p.Account.ID == uuid.Nil {
			return errors.New("bank: posting without account")
		}
	}
	stamp := b.Timestamp()

	b.Stage(batch.PhaseLedger, "bank", func(ctx context.Context, tx *gorm.DB) error {
		code, err := reference.Value()
		if err != nil {
			return err
		}
		at, err := stamp.Value()
		if err != nil {
			return err
		}
		tx = tx.WithContext(ctx)
		for _, d := range postings {
			posting := &model.BankPosting{
				ID:            uuid.New(),
				Owner:         d.Owner,
				BankAccountID: d.Account.ID,
				Direction:     d.Direction,
				Value:         d.Value,
				Uninvoiced:    d.Uninvoiced,
				PaymentCode:   d.PaymentCode,
				ReferenceCode: code,
				Operation:     d.Operation,
				CreatedAt:     at,
			}
			if err := tx.Create(posting).Error; err != nil {
				return err
			}
			res := tx.Model(&model.BankAccount{}).
				Where("id = ? AND owner = ?", d.Account.ID, d.Owner).
				Update("balance", gorm.Expr("balance + ?", posting.Signed()))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errors.New("bank: unknown account " + d.Account.Code)
			}
		}
		return nil
	})
	return nil
}
