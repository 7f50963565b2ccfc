package service

import (
	"gestorpos/internal/model"

	"github.com/shopspring/decimal"
)

// ComputeBalance turns a cart into its monetary totals. It is pure: the same
// cart always yields the same Balance.
//
// Negotiated prices above list count as revenue; below list, the gap is
// accumulated into TotalDiscount. Negative prices are not clamped.
func ComputeBalance(cart model.CartState) model.Balance {
	var b model.Balance

	// 1. Services
	if cart.Service != nil {
		for _, s := range cart.Service.Types {
			b.TotalServices = b.TotalServices.Add(decimal.Max(s.CustomPrice, s.ExecutionPrice))
			b.TotalDiscount = b.TotalDiscount.Add(positive(s.ExecutionPrice.Sub(s.CustomPrice)))
		}
		if add := cart.Service.Additional; add.IsPositive() {
			b.TotalServices = b.TotalServices.Add(add)
		} else if add.IsNegative() {
			b.TotalDiscount = b.TotalDiscount.Add(add.Neg())
		}
	}

	// 2. Products
	for _, p := range cart.Products {
		qty := p.Qty()
		b.TotalProducts = b.TotalProducts.Add(qty.Mul(decimal.Max(p.UnitaryPrice, p.SalePrice)))
		b.TotalDiscount = b.TotalDiscount.Add(qty.Mul(positive(p.SalePrice.Sub(p.UnitaryPrice))))
	}

	b.TotalPartial = b.TotalProducts.Add(b.TotalServices).Sub(b.TotalDiscount)

	// 3. Fee: an absent descriptor keeps the fee of the last committed snapshot.
	switch {
	case cart.Fee != nil:
		b.TotalFee = cart.Fee.Amount(b.TotalPartial)
	case cart.Source != nil:
		b.TotalFee = cart.Source.Balance.TotalFee
	}
	b.TotalPartial = b.TotalPartial.Add(b.TotalFee)

	// 4. Discount
	if cart.Discount != nil {
		b.TotalDiscount = b.TotalDiscount.Add(cart.Discount.Amount(b.TotalPartial))
	}

	// 5. Total
	total := decimal.Zero
	for _, term := range []decimal.Decimal{b.TotalProducts, b.TotalServices, b.TotalFee} {
		total = total.Add(positive(term))
	}
	total = total.Sub(positive(b.TotalDiscount))
	b.TotalSale = total.Round(2)

	return b
}

// ApplyBalance returns a copy of cart with its balance computed. When the
// cart has exactly one payment its value follows the sale total.
func ApplyBalance(cart model.CartState) model.CartState {
	cart.Balance = ComputeBalance(cart)
	if len(cart.Payments) == 1 {
		payments := make([]model.PaymentAllocation, 1)
		payments[0] = cart.Payments[0]
		payments[0].Value = cart.Balance.TotalSale
		cart.Payments = payments
	}
	return cart
}

func positive(d decimal.Decimal) decimal.Decimal {
	if d.IsPositive() {
		return d
	}
	return decimal.Zero
}
