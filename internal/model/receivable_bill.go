package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillStatus: "PENDENT" | "CANCELED"
type BillStatus string

const (
	BillPendent  BillStatus = "PENDENT"
	BillCanceled BillStatus = "CANCELED"
)

// ReceivableBill is the installment-credit entry generated when a sale is
// financed through store credit. ReferenceCode is the sale code.
type ReceivableBill struct {
	ID                uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Code              int64                            `gorm:"not null;uniqueIndex:idx_bills_owner_code" json:"code"`
	Owner             string                           `gorm:"type:varchar(64);not null;uniqueIndex:idx_bills_owner_code" json:"owner"`
	Origin            string                           `gorm:"type:varchar(20);not null" json:"origin"`
	ReferenceCode     int64                            `gorm:"not null;index" json:"reference_code"`
	Debtor            Person                           `gorm:"embedded;embeddedPrefix:debtor_" json:"debtor"`
	Category          string                           `gorm:"type:varchar(60)" json:"category"`
	Installments      datatypes.JSONSlice[Installment] `gorm:"type:jsonb" json:"installments"`
	TotalInstallments int                              `gorm:"not null" json:"total_installments"`
	Amount            decimal.Decimal                  `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status            BillStatus                       `gorm:"type:varchar(20);not null;default:'PENDENT'" json:"status"`
	CreatedAt         time.Time                        `json:"created_at"`
	UpdatedAt         time.Time                        `json:"updated_at"`
}

type Installment struct {
	Number  int             `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Paid    bool            `json:"paid"`
}
