package models

import "time"

// WindowKind scopes a usage aggregation in time.
type WindowKind string

// Window kinds accepted by alert thresholds.
const (
	// WindowDaily resets at local midnight.
	WindowDaily WindowKind = "daily"
	// WindowWeekly is a trailing seven-day window.
	WindowWeekly WindowKind = "weekly"
	// WindowMonthly is a trailing one-calendar-month window.
	WindowMonthly WindowKind = "monthly"
	// WindowTotal has no lower bound and never resets.
	WindowTotal WindowKind = "total"
)

// ValidWindowKind reports whether kind is one of the enumerated window kinds.
func ValidWindowKind(kind WindowKind) bool {
	switch kind {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowTotal:
		return true
	default:
		return false
	}
}

// AlertThreshold is an operator-configured alerting rule: when aggregate
// credit usage inside the window meets or exceeds the cap, a breach
// notification goes to the recipient list.
type AlertThreshold struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name       string     `gorm:"type:text;not null"`       // Human-readable rule name.
	WindowKind WindowKind `gorm:"type:text;not null;index"` // Aggregation window kind.

	CapMicros int64 `gorm:"not null"` // Breach cap in micro-credits; always > 0.

	IsActive bool `gorm:"not null;default:true;index"` // Inactive thresholds are skipped by the scheduler.

	NotifyEmails string `gorm:"type:text;not null"` // Comma-delimited recipient addresses.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
