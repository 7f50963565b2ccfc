package service

import (
	"time"

	"gestorpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultBillCategory = "SALE"
	billOriginSale      = "SALE"
)

// ComposeOptions carries tenant settings the composer needs.
type ComposeOptions struct {
	// CreditPaymentCode designates the installment-credit payment method.
	CreditPaymentCode string
	BillCategory      string
	Now               time.Time
}

// ComposeSale maps cart state into the durable Sale shape.
//
// Status is PENDENT unless the non-zero payments add up exactly to the sale
// total. Commission blocks are derived per line, and a ReceivableBill draft is
// attached when the credit payment method carries a positive value.
func ComposeSale(cart model.CartState, opts ComposeOptions) model.Sale {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	balance := ComputeBalance(cart)

	sale := model.Sale{
		ID:          cart.ID,
		Code:        cart.Code,
		Owner:       cart.Owner,
		BranchID:    cart.BranchID,
		Origin:      cart.Origin,
		Status:      model.SalePendent,
		Operator:    cart.Operator,
		Customer:    cart.Customer,
		Balance:     balance,
		Charges:     model.Charges{Fee: cart.Fee, Discount: cart.Discount},
		Warranty:    cart.Warranty,
		Note:        cart.Note,
		RequestCode: cart.RequestCode,
		ServiceCode: cart.ServiceCode,
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.Origin == "" {
		sale.Origin = model.OriginCashier
	}
	if src := cart.Source; src != nil {
		sale.Code = src.Code
		sale.RegisterDate = src.RegisterDate
		sale.BillToReceiveCode = src.BillToReceiveCode
		if sale.Charges.Fee == nil {
			sale.Charges.Fee = src.Charges.Fee
		}
	}

	products := make([]model.LineItem, 0, len(cart.Products))
	for _, p := range cart.Products {
		p.Commission = deriveCommission(p.Commission, p.CostPrice, p.CustomCostPrice)
		products = append(products, p)
	}
	sale.Products = products

	if cart.Service != nil {
		group := model.ServiceGroup{Additional: cart.Service.Additional}
		for _, s := range cart.Service.Types {
			s.Commission = deriveCommission(s.Commission, s.CostPrice, s.CustomCostPrice)
			if s.Executor == nil || s.Executor.IsZero() {
				executor := cart.Operator
				s.Executor = &executor
			}
			group.Types = append(group.Types, s)
		}
		sale.Service = &group
	}

	payments := make([]model.PaymentAllocation, 0, len(cart.Payments))
	for _, p := range cart.Payments {
		if p.Value.IsZero() {
			continue
		}
		payments = append(payments, p)
	}
	sale.Payments = payments

	if sumPayments(payments).Equal(balance.TotalSale) {
		sale.Status = model.SaleConcluded
		now := opts.Now
		sale.PaymentDate = &now
		if src := cart.Source; src != nil && src.Status == model.SaleConcluded && src.PaymentDate != nil {
			sale.PaymentDate = src.PaymentDate
		}
	}

	if credit := creditAllocation(payments, opts.CreditPaymentCode); credit != nil {
		sale.BillToReceive = draftBill(sale, *credit, opts)
	} else {
		sale.BillToReceiveCode = nil
	}
	return sale
}

func deriveCommission(c *model.Commission, cost decimal.Decimal, custom *decimal.Decimal) *model.Commission {
	base := cost
	if custom != nil {
		base = *custom
	}
	if !base.IsPositive() {
		return c
	}
	out := model.Commission{Enabled: true, Type: model.AdjustmentFixed}
	if c != nil {
		out.Enabled = c.Enabled
		if c.Type != "" {
			out.Type = c.Type
		}
	}
	out.Value = base
	return &out
}

func creditAllocation(payments []model.PaymentAllocation, code string) *model.PaymentAllocation {
	if code == "" {
		return nil
	}
	for i := range payments {
		if payments[i].Code == code && payments[i].Value.IsPositive() {
			return &payments[i]
		}
	}
	return nil
}

func draftBill(sale model.Sale, credit model.PaymentAllocation, opts ComposeOptions) *model.ReceivableBill {
	parcels := 1
	if credit.Installment != nil && credit.Installment.Parcel > 1 {
		parcels = credit.Installment.Parcel
	}
	category := opts.BillCategory
	if category == "" {
		category = defaultBillCategory
	}

	per := credit.Value.Div(decimal.NewFromInt(int64(parcels))).Truncate(2)
	installments := make([]model.Installment, parcels)
	for i := range installments {
		amount := per
		if i == parcels-1 {
			amount = credit.Value.Sub(per.Mul(decimal.NewFromInt(int64(parcels - 1))))
		}
		installments[i] = model.Installment{
			Number:  i + 1,
			DueDate: addMonths(opts.Now, i+1),
			Amount:  amount,
		}
	}

	bill := &model.ReceivableBill{
		Owner:             sale.Owner,
		Origin:            billOriginSale,
		Debtor:            sale.Customer,
		Category:          category,
		Installments:      installments,
		TotalInstallments: parcels,
		Amount:            credit.Value,
		Status:            model.BillPendent,
	}
	if sale.BillToReceiveCode != nil {
		bill.Code = *sale.BillToReceiveCode
	}
	return bill
}

// addMonths keeps the day of month of t, clamped to the end of the target
// month.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
