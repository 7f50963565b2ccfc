package model

import "github.com/shopspring/decimal"

// AdjustmentType tags an Adjustment: "FIXED" | "PERCENTAGE"
type AdjustmentType string

const (
	AdjustmentFixed      AdjustmentType = "FIXED"
	AdjustmentPercentage AdjustmentType = "PERCENTAGE"
)

var hundred = decimal.NewFromInt(100)

// Adjustment is the fee / discount / commission descriptor. Value is either an
// absolute amount or a percentage, depending on Type.
type Adjustment struct {
	Type  AdjustmentType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

func Fixed(v decimal.Decimal) *Adjustment {
	return &Adjustment{Type: AdjustmentFixed, Value: v}
}

func Percentage(v decimal.Decimal) *Adjustment {
	return &Adjustment{Type: AdjustmentPercentage, Value: v}
}

// Amount resolves the adjustment against base. Percentages are rounded to
// cents.
func (a Adjustment) Amount(base decimal.Decimal) decimal.Decimal {
	if a.Type == AdjustmentPercentage {
		return base.Mul(a.Value).Div(hundred).Round(2)
	}
	return a.Value
}

// PercentOf returns pct% of v, rounded to cents.
func PercentOf(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred).Round(2)
}
