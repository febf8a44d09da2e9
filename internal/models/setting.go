package models

import (
	"encoding/json"
	"time"
)

// Setting is one DB-backed runtime setting (alert cadence, startup delay,
// default notify address). Rows are read into an in-memory snapshot at boot
// and after every settings update; the scheduler never queries them directly.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Setting key, e.g. ALERT_CHECK_INTERVAL_SECONDS.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
