package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertHistory records one breach firing for a threshold. Rows are immutable
// and double as the deduplication record: at most one row per threshold per
// window instance. ThresholdID is a weak reference; the threshold may have
// been edited or deleted since the row was written, which is why the usage
// and cap values are snapshotted here.
type AlertHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ThresholdID uint64 `gorm:"not null;index"` // Threshold that fired (weak reference).

	TriggeredAt time.Time `gorm:"not null;index"` // Moment the breach was detected.

	CreditsUsedMicros int64 `gorm:"not null"` // Aggregate usage at firing time, micro-credits.
	CapMicros         int64 `gorm:"not null"` // Cap at firing time, micro-credits.

	EmailSent bool `gorm:"not null;default:false"` // True only when every recipient accepted.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Per-recipient outcomes and threshold snapshot.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (AlertHistory) TableName() string {
	return "alert_histories"
}
