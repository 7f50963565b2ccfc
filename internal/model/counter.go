package model

// Counter is the per-owner monotonic sequence behind sale and bill codes.
type Counter struct {
	Owner      string `gorm:"type:varchar(64);primaryKey"`
	Collection string `gorm:"type:varchar(40);primaryKey"`
	Value      int64  `gorm:"not null;default:0"`
}
