package model

import "github.com/google/uuid"

// CartState is the explicit, by-value input of the balance calculator and the
// composer. Slices are treated as read-only; functions that change them copy
// first.
type CartState struct {
	// ID and Code identify the sale being edited; both are zero for a new cart.
	ID   uuid.UUID
	Code int64

	Owner    string
	BranchID *string
	Origin   SaleOrigin
	Operator Person
	Customer Person

	Products []LineItem
	Service  *ServiceGroup
	Payments []PaymentAllocation
	Fee      *Adjustment
	Discount *Adjustment
	Balance  Balance

	Warranty    string
	Note        string
	RequestCode *int64
	ServiceCode *int64

	// Source is the last committed snapshot of the sale, nil for new carts.
	Source *Sale
}

// IsNew reports whether the cart has never been committed.
func (c CartState) IsNew() bool { return c.Source == nil }
