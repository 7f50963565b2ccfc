package service

import (
	"gestorpos/internal/model"

	"github.com/shopspring/decimal"
)

// PaymentAcceptance: "ACCEPTED" | "REFUSED"
type PaymentAcceptance string

const (
	PaymentAccepted PaymentAcceptance = "ACCEPTED"
	PaymentRefused  PaymentAcceptance = "REFUSED"
)

// PaymentStatus is advisory: REFUSED blocks submission in the presenting
// layer, the engine itself settles over- or under-paid sales.
type PaymentStatus struct {
	Status   PaymentAcceptance `json:"status"`
	Value    decimal.Decimal   `json:"value"`
	Pendent  decimal.Decimal   `json:"pendent"`
	Overplus decimal.Decimal   `json:"overplus"`
}

// ReconcilePayments compares the allocated payments against the sale total.
func ReconcilePayments(payments []model.PaymentAllocation, balance model.Balance) PaymentStatus {
	value := sumPayments(payments)
	if value.LessThanOrEqual(balance.TotalSale) {
		return PaymentStatus{
			Status:  PaymentAccepted,
			Value:   value,
			Pendent: balance.TotalSale.Sub(value),
		}
	}
	return PaymentStatus{
		Status:   PaymentRefused,
		Value:    value,
		Overplus: value.Sub(balance.TotalSale),
	}
}

func sumPayments(payments []model.PaymentAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Value)
	}
	return total.Round(2)
}
