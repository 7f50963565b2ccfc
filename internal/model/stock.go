package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product keeps the aggregate stock counter of a product code per owner.
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner     string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_products_owner_code"`
	Code      string          `gorm:"type:varchar(60);not null;uniqueIndex:idx_products_owner_code"`
	Name      string          `gorm:"index;not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	UpdatedAt time.Time
}

// ProductStock is the per-branch counter used in multi-branch mode.
type ProductStock struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner       string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_stocks_key"`
	ProductCode string          `gorm:"type:varchar(60);not null;uniqueIndex:idx_product_stocks_key"`
	BranchID    string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_stocks_key"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	UpdatedAt   time.Time
}

// StockAction: "SALE" | "SALE_CANCEL"
type StockAction string

const (
	StockSale       StockAction = "SALE"
	StockSaleCancel StockAction = "SALE_CANCEL"
)

// StockMovement records every staged stock change.
type StockMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner       string          `gorm:"type:varchar(64);not null;index"`
	ProductCode string          `gorm:"type:varchar(60);not null;index"`
	BranchID    *string         `gorm:"type:varchar(64)"`
	Action      StockAction     `gorm:"type:varchar(20);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null"` // signed: negative takes stock out
	// ReferenceCode is the sale code the movement belongs to.
	ReferenceCode int64  `gorm:"not null;index"`
	Operator      Person `gorm:"embedded;embeddedPrefix:operator_"`
	CreatedAt     time.Time
}

// TableName overrides GORM's default pluralization.
func (StockMovement) TableName() string { return "stock_movements" }

// StockDelta is a signed quantity change for one product code.
type StockDelta struct {
	ProductCode string
	Quantity    decimal.Decimal
}
