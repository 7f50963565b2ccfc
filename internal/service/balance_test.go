package service_test

import (
	"testing"

	"gestorpos/internal/model"
	"gestorpos/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func product(code, unitary, sale, qty string) model.LineItem {
	return model.LineItem{
		Code:         code,
		Name:         "product " + code,
		CostPrice:    dec("50"),
		SalePrice:    dec(sale),
		UnitaryPrice: dec(unitary),
		Quantity:     decPtr(qty),
	}
}

// ── ComputeBalance ────────────────────────────────────────────────────────────

func TestComputeBalance_NegotiatedBelowList(t *testing.T) {
	cart := model.CartState{Products: []model.LineItem{product("P1", "100", "120", "2")}}

	b := service.ComputeBalance(cart)

	assertDec(t, "240", b.TotalProducts)
	assertDec(t, "40", b.TotalDiscount)
	assertDec(t, "200", b.TotalSale)
}

func TestComputeBalance_Idempotent(t *testing.T) {
	cart := model.CartState{
		Products: []model.LineItem{product("P1", "10.333", "12", "3"), product("P2", "7", "5", "1.5")},
		Service: &model.ServiceGroup{
			Types: []model.ServiceEntry{
				{Code: "S1", ExecutionPrice: dec("80"), CustomPrice: dec("70")},
			},
			Additional: dec("-5"),
		},
		Fee:      model.Percentage(dec("2.5")),
		Discount: model.Fixed(dec("3")),
	}

	first := service.ComputeBalance(cart)
	second := service.ComputeBalance(cart)

	assert.Equal(t, first, second)
}

func TestComputeBalance_TotalIsRoundedToCents(t *testing.T) {
	carts := []model.CartState{
		{Products: []model.LineItem{product("P1", "10.333", "10.333", "3")}},
		{Products: []model.LineItem{product("P1", "1.005", "1", "7")}, Fee: model.Percentage(dec("3.3"))},
		{Service: &model.ServiceGroup{Types: []model.ServiceEntry{{ExecutionPrice: dec("99.999"), CustomPrice: dec("99.999")}}}},
	}
	for i, cart := range carts {
		b := service.ComputeBalance(cart)
		assert.True(t, b.TotalSale.Equal(b.TotalSale.Round(2)), "cart %d: %s", i, b.TotalSale)
	}
}

func TestComputeBalance_DiscountOnlyWhenBeneficial(t *testing.T) {
	cases := []struct {
		name, unitary, sale, discount string
	}{
		{"below list", "90", "100", "10"},
		{"equal", "100", "100", "0"},
		{"above list", "110", "100", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := service.ComputeBalance(model.CartState{Products: []model.LineItem{product("P", tc.unitary, tc.sale, "1")}})
			assertDec(t, tc.discount, b.TotalDiscount)
		})
	}

	t.Run("service above list", func(t *testing.T) {
		b := service.ComputeBalance(model.CartState{Service: &model.ServiceGroup{
			Types: []model.ServiceEntry{{ExecutionPrice: dec("50"), CustomPrice: dec("65")}},
		}})
		assertDec(t, "65", b.TotalServices)
		assertDec(t, "0", b.TotalDiscount)
		assertDec(t, "65", b.TotalSale)
	})
}

func TestComputeBalance_FeeAndDiscountDescriptors(t *testing.T) {
	cart := model.CartState{
		Products: []model.LineItem{product("P1", "100", "100", "1")},
		Fee:      model.Percentage(dec("10")),
		Discount: model.Percentage(dec("50")),
	}

	b := service.ComputeBalance(cart)

	assertDec(t, "10", b.TotalFee)
	// the discount applies to the partial after the fee
	assertDec(t, "55", b.TotalDiscount)
	assertDec(t, "55", b.TotalSale)
}

func TestComputeBalance_FeeFallsBackToSource(t *testing.T) {
	source := &model.Sale{Balance: model.Balance{TotalFee: dec("7.5")}}
	cart := model.CartState{Products: []model.LineItem{product("P1", "20", "20", "1")}, Source: source}

	b := service.ComputeBalance(cart)

	assertDec(t, "7.5", b.TotalFee)
	assertDec(t, "27.5", b.TotalSale)
}

func TestComputeBalance_ServiceAdditional(t *testing.T) {
	group := func(add string) *model.ServiceGroup {
		return &model.ServiceGroup{
			Types:      []model.ServiceEntry{{ExecutionPrice: dec("100"), CustomPrice: dec("100")}},
			Additional: dec(add),
		}
	}

	extra := service.ComputeBalance(model.CartState{Service: group("20")})
	assertDec(t, "120", extra.TotalServices)
	assertDec(t, "120", extra.TotalSale)

	rebate := service.ComputeBalance(model.CartState{Service: group("-20")})
	assertDec(t, "100", rebate.TotalServices)
	assertDec(t, "20", rebate.TotalDiscount)
	assertDec(t, "80", rebate.TotalSale)
}

func TestComputeBalance_MissingQuantityCountsAsZero(t *testing.T) {
	item := product("P1", "10", "10", "1")
	item.Quantity = nil

	b := service.ComputeBalance(model.CartState{Products: []model.LineItem{item}})

	assertDec(t, "0", b.TotalSale)
}

// ── ApplyBalance ──────────────────────────────────────────────────────────────

func TestApplyBalance_SinglePaymentFollowsTotal(t *testing.T) {
	payments := []model.PaymentAllocation{{Code: "CASH", Value: dec("1")}}
	cart := model.CartState{
		Products: []model.LineItem{product("P1", "100", "120", "2")},
		Payments: payments,
	}

	out := service.ApplyBalance(cart)

	assertDec(t, "200", out.Payments[0].Value)
	assertDec(t, "1", payments[0].Value, "input slice must not be modified")
}

func TestApplyBalance_SeveralPaymentsUntouched(t *testing.T) {
	cart := model.CartState{
		Products: []model.LineItem{product("P1", "100", "100", "1")},
		Payments: []model.PaymentAllocation{{Code: "CASH", Value: dec("30")}, {Code: "CARD", Value: dec("20")}},
	}

	out := service.ApplyBalance(cart)

	assertDec(t, "30", out.Payments[0].Value)
	assertDec(t, "20", out.Payments[1].Value)
	assertDec(t, "100", out.Balance.TotalSale)
}

// ── ReconcilePayments ─────────────────────────────────────────────────────────

func TestReconcilePayments(t *testing.T) {
	balance := model.Balance{TotalSale: dec("200")}

	exact := service.ReconcilePayments([]model.PaymentAllocation{{Code: "CASH", Value: dec("200")}}, balance)
	assert.Equal(t, service.PaymentAccepted, exact.Status)
	assertDec(t, "200", exact.Value)
	assertDec(t, "0", exact.Pendent)

	under := service.ReconcilePayments([]model.PaymentAllocation{{Code: "CASH", Value: dec("150")}}, balance)
	assert.Equal(t, service.PaymentAccepted, under.Status)
	assertDec(t, "50", under.Pendent)

	over := service.ReconcilePayments([]model.PaymentAllocation{
		{Code: "CASH", Value: dec("150")},
		{Code: "CARD", Value: dec("60.004")},
	}, balance)
	assert.Equal(t, service.PaymentRefused, over.Status)
	assertDec(t, "10", over.Overplus)
}

func TestNetValue(t *testing.T) {
	assertDec(t, "97", service.NetValue(dec("100"), dec("3")))
	assertDec(t, "0", service.NetValue(dec("100"), dec("150")))
	assertDec(t, "100", service.NetValue(dec("100"), decimal.Zero))
}
