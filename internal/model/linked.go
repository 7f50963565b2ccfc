package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkOrderStatus values mirrored by the settlement engine.
const (
	WorkOrderPaymentPendent  = "PENDENT"
	WorkOrderPaymentPaid     = "CONCLUDED"
	WorkOrderPaymentCanceled = "CANCELED"

	WorkOrderServiceConcluded = "CONCLUDED"
	WorkOrderServiceCanceled  = "CANCELED"
)

// WorkOrder is a workshop service order that may be billed through a sale.
type WorkOrder struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_work_orders_owner_code"`
	Code          int64     `gorm:"not null;uniqueIndex:idx_work_orders_owner_code"`
	SaleCode      *int64
	ServiceStatus string `gorm:"type:varchar(20);not null"`
	PaymentStatus string `gorm:"type:varchar(20);not null"`
	UpdatedAt     time.Time
}

// Request is a CRM order converted into a sale.
type Request struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_requests_owner_code"`
	Code      int64     `gorm:"not null;uniqueIndex:idx_requests_owner_code"`
	SaleCode  *int64
	Status    string `gorm:"type:varchar(20);not null"`
	UpdatedAt time.Time
}
