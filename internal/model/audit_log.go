package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditAction: "register" | "update" | "cancel" | "change_operator"
type AuditAction string

const (
	AuditRegister       AuditAction = "register"
	AuditUpdate         AuditAction = "update"
	AuditCancel         AuditAction = "cancel"
	AuditChangeOperator AuditAction = "change_operator"
)

// AuditLog is appended once per settlement call.
type AuditLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Owner         string         `gorm:"type:varchar(64);not null;index"`
	Collection    string         `gorm:"type:varchar(40);not null"`
	Action        AuditAction    `gorm:"type:varchar(20);not null"`
	ReferenceCode int64          `gorm:"not null;index"`
	Operator      Person         `gorm:"embedded;embeddedPrefix:operator_"`
	Data          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
}
