package dto

import (
	"time"

	"gestorpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type PersonRequest struct {
	ID   string `json:"id"   validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=120"`
}

func (p *PersonRequest) toModel() model.Person {
	if p == nil {
		return model.Person{}
	}
	return model.Person{ID: p.ID, Name: p.Name}
}

type AdjustmentRequest struct {
	Type  string          `json:"type"  validate:"required,oneof=FIXED PERCENTAGE"`
	Value decimal.Decimal `json:"value" validate:"gte=0"`
}

func (a *AdjustmentRequest) toModel() *model.Adjustment {
	if a == nil {
		return nil
	}
	return &model.Adjustment{Type: model.AdjustmentType(a.Type), Value: a.Value}
}

type CommissionRequest struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type" validate:"omitempty,oneof=FIXED PERCENTAGE"`
}

func (c *CommissionRequest) toModel() *model.Commission {
	if c == nil {
		return nil
	}
	return &model.Commission{Enabled: c.Enabled, Type: model.AdjustmentType(c.Type)}
}

// LineItemRequest: a missing quantity is accepted here and rejected by the
// settlement, which reports the offending line.
type LineItemRequest struct {
	Code            string             `json:"code"              validate:"required,max=60"`
	Name            string             `json:"name"              validate:"required"`
	CostPrice       decimal.Decimal    `json:"cost_price"        validate:"gte=0"`
	CustomCostPrice *decimal.Decimal   `json:"custom_cost_price"`
	SalePrice       decimal.Decimal    `json:"sale_price"`
	UnitaryPrice    decimal.Decimal    `json:"unitary_price"`
	Quantity        *decimal.Decimal   `json:"quantity"`
	Serials         []string           `json:"serials"`
	Lot             string             `json:"lot"`
	Commission      *CommissionRequest `json:"commission"`
	Discount        bool               `json:"discount"`
	Reserve         bool               `json:"reserve"`
}

type ServiceEntryRequest struct {
	Code            string             `json:"code"            validate:"required,max=60"`
	Name            string             `json:"name"            validate:"required"`
	CostPrice       decimal.Decimal    `json:"cost_price"      validate:"gte=0"`
	CustomCostPrice *decimal.Decimal   `json:"custom_cost_price"`
	ExecutionPrice  decimal.Decimal    `json:"execution_price"`
	CustomPrice     decimal.Decimal    `json:"custom_price"`
	Executor        *PersonRequest     `json:"executor"`
	Commission      *CommissionRequest `json:"commission"`
}

type ServiceGroupRequest struct {
	Types      []ServiceEntryRequest `json:"types"      validate:"dive"`
	Additional decimal.Decimal       `json:"additional"`
}

type InstallmentRequest struct {
	Parcel int             `json:"parcel" validate:"min=1,max=48"`
	Fee    decimal.Decimal `json:"fee"    validate:"gte=0"`
}

type BankAccountRequest struct {
	ID   string `json:"id"   validate:"required,uuid"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type PaymentRequest struct {
	Code        string              `json:"code"         validate:"required,max=30"`
	Name        string              `json:"name"`
	Value       decimal.Decimal     `json:"value"        validate:"gte=0"`
	Installment *InstallmentRequest `json:"installment"`
	FeePct      *decimal.Decimal    `json:"fee_pct"`
	Note        string              `json:"note"         validate:"max=500"`
	Uninvoiced  bool                `json:"uninvoiced"`
	BankAccount *BankAccountRequest `json:"bank_account"`
}

// CartRequest is the body of POST /v1/sales, PUT /v1/sales/:ref and
// POST /v1/sales/balance. The operator defaults to the authenticated user.
type CartRequest struct {
	BranchID    *string              `json:"branch_id"    validate:"omitempty,max=64"`
	Origin      string               `json:"origin"       validate:"omitempty,oneof=CASHIER CRM SERVICE_ORDER REQUEST"`
	Operator    *PersonRequest       `json:"operator"`
	Customer    *PersonRequest       `json:"customer"`
	Products    []LineItemRequest    `json:"products"     validate:"dive"`
	Service     *ServiceGroupRequest `json:"service"`
	Payments    []PaymentRequest     `json:"payments"     validate:"unique=Code,dive"`
	Fee         *AdjustmentRequest   `json:"fee"`
	Discount    *AdjustmentRequest   `json:"discount"`
	Warranty    string               `json:"warranty"     validate:"max=255"`
	Note        string               `json:"note"         validate:"max=1000"`
	RequestCode *int64               `json:"request_code" validate:"omitempty,min=1"`
	ServiceCode *int64               `json:"service_code" validate:"omitempty,min=1"`
}

// ToCart maps the request into the calculator's cart state.
func (r CartRequest) ToCart(owner string, user model.Person) model.CartState {
	cart := model.CartState{
		Owner:       owner,
		BranchID:    r.BranchID,
		Origin:      model.SaleOrigin(r.Origin),
		Operator:    user,
		Customer:    r.Customer.toModel(),
		Fee:         r.Fee.toModel(),
		Discount:    r.Discount.toModel(),
		Warranty:    r.Warranty,
		Note:        r.Note,
		RequestCode: r.RequestCode,
		ServiceCode: r.ServiceCode,
	}
	if r.Operator != nil {
		cart.Operator = r.Operator.toModel()
	}

	for _, p := range r.Products {
		cart.Products = append(cart.Products, model.LineItem{
			Code:            p.Code,
			Name:            p.Name,
			CostPrice:       p.CostPrice,
			CustomCostPrice: p.CustomCostPrice,
			SalePrice:       p.SalePrice,
			UnitaryPrice:    p.UnitaryPrice,
			Quantity:        p.Quantity,
			Serials:         p.Serials,
			Lot:             p.Lot,
			Commission:      p.Commission.toModel(),
			Discount:        p.Discount,
			Reserve:         p.Reserve,
		})
	}

	if r.Service != nil {
		group := &model.ServiceGroup{Additional: r.Service.Additional}
		for _, s := range r.Service.Types {
			entry := model.ServiceEntry{
				Code:            s.Code,
				Name:            s.Name,
				CostPrice:       s.CostPrice,
				CustomCostPrice: s.CustomCostPrice,
				ExecutionPrice:  s.ExecutionPrice,
				CustomPrice:     s.CustomPrice,
				Commission:      s.Commission.toModel(),
			}
			if s.Executor != nil {
				executor := s.Executor.toModel()
				entry.Executor = &executor
			}
			group.Types = append(group.Types, entry)
		}
		cart.Service = group
	}

	for _, p := range r.Payments {
		alloc := model.PaymentAllocation{
			Code:       p.Code,
			Name:       p.Name,
			Value:      p.Value,
			FeePct:     p.FeePct,
			Note:       p.Note,
			Uninvoiced: p.Uninvoiced,
		}
		if p.Installment != nil {
			alloc.Installment = &model.InstallmentFee{Parcel: p.Installment.Parcel, Fee: p.Installment.Fee}
		}
		if p.BankAccount != nil {
			// validated as a uuid
			id, _ := uuid.Parse(p.BankAccount.ID)
			alloc.BankAccount = &model.BankAccountRef{ID: id, Code: p.BankAccount.Code, Name: p.BankAccount.Name}
		}
		cart.Payments = append(cart.Payments, alloc)
	}
	return cart
}

type ChangeOperatorRequest struct {
	Operator PersonRequest `json:"operator" validate:"required"`
}

func (r ChangeOperatorRequest) ToPerson() model.Person { return r.Operator.toModel() }

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SettlementResponse struct {
	ID           string     `json:"id"`
	Code         int64      `json:"code"`
	RegisterDate *time.Time `json:"register_date,omitempty"`
	Status       string     `json:"status"`
	Concluded    bool       `json:"concluded"`
}

func NewSettlementResponse(id uuid.UUID, code int64, registerDate *time.Time, status model.SaleStatus, concluded bool) SettlementResponse {
	return SettlementResponse{
		ID:           id.String(),
		Code:         code,
		RegisterDate: registerDate,
		Status:       string(status),
		Concluded:    concluded,
	}
}
