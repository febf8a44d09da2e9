package models

import (
	"time"

	"gorm.io/datatypes"
)

// CreditUsage records metered AI credit consumption for a single billable action.
// Rows are append-only; the alerting engine only ever reads them.
type CreditUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64 `gorm:"not null;index"`           // Account the cost is attributed to.
	Feature string `gorm:"type:text;not null;index"` // Feature tag, e.g. "press_release_generation".

	CreditsMicros int64 `gorm:"not null;default:0"` // Credits consumed, in micro-credits (1 credit = 1e6).
	TokensUsed    int64 `gorm:"not null;default:0"` // Raw token count when the provider reports one.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Free-form audit payload.

	CreatedAt time.Time `gorm:"not null;index;autoCreateTime"` // Moment the billable action completed.
}

// TableName overrides the default table name.
func (CreditUsage) TableName() string {
	return "credit_usages"
}
