package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankAccount receives the payment postings of a tenant. At most one account
// per owner is flagged as default.
type BankAccount struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Owner     string          `gorm:"type:varchar(64);not null;index" json:"owner"`
	Code      string          `gorm:"type:varchar(30);not null" json:"code"`
	Name      string          `gorm:"not null" json:"name"`
	IsDefault bool            `gorm:"not null;default:false" json:"is_default"`
	Balance   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance"`
}

// Ref returns the value copy stored on payment allocations.
func (a BankAccount) Ref() BankAccountRef {
	return BankAccountRef{ID: a.ID, Code: a.Code, Name: a.Name}
}

// PostingDirection: "DEPOSIT" | "WITHDRAW"
type PostingDirection string

const (
	Deposit  PostingDirection = "DEPOSIT"
	Withdraw PostingDirection = "WITHDRAW"
)

// BankPosting is an immutable event in the bank ledger. Value is always
// non-negative; Direction carries the sign. Cancellations create inverse
// postings, never updates.
type BankPosting struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Owner         string           `gorm:"type:varchar(64);not null;index" json:"owner"`
	BankAccountID uuid.UUID        `gorm:"type:uuid;not null;index" json:"bank_account_id"`
	Direction     PostingDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Value         decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"value"`
	Uninvoiced    bool             `gorm:"not null;default:false" json:"uninvoiced"`
	PaymentCode   string           `gorm:"type:varchar(30)" json:"payment_code"`
	// ReferenceCode links to the originating sale code.
	ReferenceCode int64     `gorm:"not null;index" json:"reference_code"`
	Operation     string    `gorm:"type:varchar(20);not null" json:"operation"`
	CreatedAt     time.Time `json:"created_at"`
}

// Signed returns the posting value with its direction applied.
func (p BankPosting) Signed() decimal.Decimal {
	if p.Direction == Withdraw {
		return p.Value.Neg()
	}
	return p.Value
}
