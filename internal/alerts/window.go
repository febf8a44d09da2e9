package alerts

import (
	"time"

	"github.com/upsurgeiq/creditwatch/internal/models"
)

// WindowStartFor returns the aggregation lower bound for a window kind as of
// now, or nil for the unbounded total kind.
//
// daily is aligned to local midnight while weekly and monthly are trailing
// windows relative to the check time. The asymmetry is intentional: a daily
// cap resets with the server's calendar day, the longer windows roll.
// Aligning all three to calendar boundaries would change alerting cadence.
func WindowStartFor(kind models.WindowKind, now time.Time) *time.Time {
	switch kind {
	case models.WindowDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &start
	case models.WindowWeekly:
		start := now.AddDate(0, 0, -7)
		return &start
	case models.WindowMonthly:
		start := now.AddDate(0, -1, 0)
		return &start
	default:
		return nil
	}
}
