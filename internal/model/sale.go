package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleOrigin: "CASHIER" | "CRM" | "SERVICE_ORDER" | "REQUEST"
type SaleOrigin string

const (
	OriginCashier      SaleOrigin = "CASHIER"
	OriginCRM          SaleOrigin = "CRM"
	OriginServiceOrder SaleOrigin = "SERVICE_ORDER"
	OriginRequest      SaleOrigin = "REQUEST"
)

// SaleStatus: "PENDENT" | "CONCLUDED" | "CANCELED"
type SaleStatus string

const (
	SalePendent   SaleStatus = "PENDENT"
	SaleConcluded SaleStatus = "CONCLUDED"
	SaleCanceled  SaleStatus = "CANCELED"
)

// CanTransition reports whether a persisted sale in status s may be saved
// with status next. Nothing leaves CANCELED.
func (s SaleStatus) CanTransition(next SaleStatus) bool {
	switch s {
	case SalePendent:
		return true
	case SaleConcluded:
		return next == SaleConcluded || next == SaleCanceled
	default:
		return false
	}
}

// Person is an embedded {id, name} reference (operator, customer, executor).
type Person struct {
	ID   string `gorm:"type:varchar(64)" json:"id"`
	Name string `gorm:"type:varchar(120)" json:"name"`
}

func (p Person) IsZero() bool { return p.ID == "" && p.Name == "" }

// Sale is the transaction root. Code is 0 until the batch that registers the
// sale commits, and immutable afterwards. Sales are never deleted.
type Sale struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code     int64      `gorm:"not null;uniqueIndex:idx_sales_owner_code" json:"code"`
	Owner    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_sales_owner_code" json:"owner"`
	BranchID *string    `gorm:"type:varchar(64)" json:"branch_id,omitempty"`
	Origin   SaleOrigin `gorm:"type:varchar(20);not null" json:"origin"`
	Status   SaleStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Operator Person `gorm:"embedded;embeddedPrefix:operator_" json:"operator"`
	Customer Person `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`

	Products datatypes.JSONSlice[LineItem]          `gorm:"type:jsonb" json:"products"`
	Service  *ServiceGroup                          `gorm:"type:jsonb;serializer:json" json:"service,omitempty"`
	Payments datatypes.JSONSlice[PaymentAllocation] `gorm:"type:jsonb" json:"payments"`
	Balance  Balance                                `gorm:"type:jsonb;serializer:json" json:"balance"`
	Charges  Charges                                `gorm:"type:jsonb;serializer:json" json:"charges"`

	Warranty string `json:"warranty,omitempty"`
	Note     string `json:"note,omitempty"`

	RequestCode       *int64 `json:"request_code,omitempty"`
	ServiceCode       *int64 `json:"service_code,omitempty"`
	BillToReceiveCode *int64 `json:"bill_to_receive_code,omitempty"`

	RegisterDate *time.Time `json:"register_date,omitempty"`
	PaymentDate  *time.Time `json:"payment_date,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// BillToReceive is the draft attached by the composer; only its code is
	// persisted on the sale.
	BillToReceive *ReceivableBill `gorm:"-" json:"bill_to_receive,omitempty"`
}

// Charges holds the sale-level fee and discount descriptors.
type Charges struct {
	Fee      *Adjustment `json:"fee,omitempty"`
	Discount *Adjustment `json:"discount,omitempty"`
}

// LineItem is a product line. SalePrice is the list price and UnitaryPrice
// the negotiated one.
type LineItem struct {
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	CostPrice       decimal.Decimal  `json:"cost_price"`
	CustomCostPrice *decimal.Decimal `json:"custom_cost_price,omitempty"`
	SalePrice       decimal.Decimal  `json:"sale_price"`
	UnitaryPrice    decimal.Decimal  `json:"unitary_price"`
	// Quantity is nil when the cart never set one; settlement rejects it.
	Quantity   *decimal.Decimal `json:"quantity"`
	Serials    []string         `json:"serials,omitempty"`
	Lot        string           `json:"lot,omitempty"`
	Commission *Commission      `json:"commission,omitempty"`
	Discount   bool             `json:"discount,omitempty"`
	Reserve    bool             `json:"reserve,omitempty"`
}

// Qty returns the quantity, zero when unset.
func (l LineItem) Qty() decimal.Decimal {
	if l.Quantity == nil {
		return decimal.Zero
	}
	return *l.Quantity
}

// Commission is the per-line commission block consumed by commission reports.
type Commission struct {
	Enabled bool            `json:"enabled"`
	Type    AdjustmentType  `json:"type"`
	Value   decimal.Decimal `json:"value"`
}

// ServiceGroup lists the services of a sale. Additional is a signed extra
// charge (positive) or rebate (negative).
type ServiceGroup struct {
	Types      []ServiceEntry  `json:"types"`
	Additional decimal.Decimal `json:"additional"`
}

// ServiceEntry: ExecutionPrice is the list price, CustomPrice the negotiated one.
type ServiceEntry struct {
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	CostPrice       decimal.Decimal  `json:"cost_price"`
	CustomCostPrice *decimal.Decimal `json:"custom_cost_price,omitempty"`
	ExecutionPrice  decimal.Decimal  `json:"execution_price"`
	CustomPrice     decimal.Decimal  `json:"custom_price"`
	Executor        *Person          `json:"executor,omitempty"`
	Commission      *Commission      `json:"commission,omitempty"`
}

// PaymentAllocation is one payment method line of a sale.
type PaymentAllocation struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Value       decimal.Decimal `json:"value"`
	Installment *InstallmentFee `json:"installment,omitempty"`
	// FeePct is the method's flat processor fee, used when Installment is nil.
	FeePct      *decimal.Decimal `json:"fee_pct,omitempty"`
	Note        string           `json:"note,omitempty"`
	Uninvoiced  bool             `json:"uninvoiced,omitempty"`
	BankAccount *BankAccountRef  `json:"bank_account,omitempty"`
	History     []PostingHistory `json:"history,omitempty"`
}

// ProcessorFee returns the fee percentage charged by the payment processor.
func (p PaymentAllocation) ProcessorFee() decimal.Decimal {
	if p.Installment != nil && p.Installment.Fee.IsPositive() {
		return p.Installment.Fee
	}
	if p.FeePct != nil {
		return *p.FeePct
	}
	return decimal.Zero
}

// Posted returns the sum of every value already posted for this allocation.
func (p PaymentAllocation) Posted() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.History {
		total = total.Add(h.Value)
	}
	return total
}

// InstallmentFee: Parcel is the installment count, Fee a percentage.
type InstallmentFee struct {
	Parcel int             `json:"parcel"`
	Fee    decimal.Decimal `json:"fee"`
}

type BankAccountRef struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// PostingHistory records a gross value posted to the bank ledger.
type PostingHistory struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// Balance is computed, never hand-edited. TotalSale is always rounded to
// cents and is the only number compared against payments.
type Balance struct {
	TotalProducts decimal.Decimal `json:"total_products"`
	TotalServices decimal.Decimal `json:"total_services"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalFee      decimal.Decimal `json:"total_fee"`
	TotalPartial  decimal.Decimal `json:"total_partial"`
	TotalSale     decimal.Decimal `json:"total_sale"`
}
