package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Checker runs one evaluation cycle over the active thresholds: aggregate
// usage per window, compare against the cap, deduplicate against history, and
// notify on a fresh breach.
type Checker struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier *Notifier
	now      func() time.Time
}

// NewChecker constructs a Checker.
func NewChecker(db *gorm.DB, l *ledger.Ledger, n *Notifier) *Checker {
	return &Checker{db: db, ledger: l, notifier: n, now: time.Now}
}

// RunCycle evaluates every active threshold once. A failure on one threshold
// is logged and does not stop the rest; the returned error is non-nil only
// when the threshold list itself cannot be loaded.
func (c *Checker) RunCycle(ctx context.Context) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("alerts: checker not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var thresholds []models.AlertThreshold
	if errFind := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&thresholds).Error; errFind != nil {
		return fmt.Errorf("alerts: load thresholds: %w", errFind)
	}

	now := c.now()
	for i := range thresholds {
		threshold := &thresholds[i]
		if errCheck := c.checkThreshold(ctx, threshold, now); errCheck != nil {
			log.WithError(errCheck).Errorf("alert check failed for threshold %d (%s)", threshold.ID, threshold.Name)
		}
	}
	return nil
}

func (c *Checker) checkThreshold(ctx context.Context, threshold *models.AlertThreshold, now time.Time) error {
	windowStart := WindowStartFor(threshold.WindowKind, now)

	used, errSum := c.ledger.SumCreditsMicros(ctx, windowStart, nil)
	if errSum != nil {
		return errSum
	}
	if used < threshold.CapMicros {
		return nil
	}

	fired, errFired := c.hasFiredInWindow(ctx, threshold.ID, windowStart)
	if errFired != nil {
		return errFired
	}
	if fired {
		log.Debugf("alert %q already fired this window, suppressing", threshold.Name)
		return nil
	}

	log.Infof("alert %q breached: %s of %s credits (%s window)",
		threshold.Name, ledger.FormatCredits(used), ledger.FormatCredits(threshold.CapMicros), threshold.WindowKind)

	results := c.notifier.NotifyBreach(ctx, threshold, used, now)
	return c.recordFiring(ctx, threshold, used, now, results)
}

// hasFiredInWindow reports whether a history row already exists for the
// threshold inside the current window instance. A nil windowStart is the
// total kind: once fired, fired forever.
func (c *Checker) hasFiredInWindow(ctx context.Context, thresholdID uint64, windowStart *time.Time) (bool, error) {
	q := c.db.WithContext(ctx).
		Model(&models.AlertHistory{}).
		Where("threshold_id = ?", thresholdID)
	if windowStart != nil {
		q = q.Where("triggered_at >= ?", *windowStart)
	}
	var count int64
	if errCount := q.Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("alerts: dedup lookup: %w", errCount)
	}
	return count > 0, nil
}

// recordFiring writes the history row. The row is written even when every
// send failed so the breach is not re-notified each cycle for the rest of the
// window; the per-recipient outcomes land in metadata for the operator.
func (c *Checker) recordFiring(ctx context.Context, threshold *models.AlertThreshold, used int64, now time.Time, results []DeliveryResult) error {
	allSent := len(results) > 0
	deliveries := make([]map[string]any, 0, len(results))
	for _, result := range results {
		entry := map[string]any{"recipient": result.Recipient, "sent": result.Err == nil}
		if result.Err != nil {
			allSent = false
			entry["error"] = result.Err.Error()
		}
		deliveries = append(deliveries, entry)
	}

	payload, errMarshal := json.Marshal(map[string]any{
		"threshold_name": threshold.Name,
		"window_kind":    threshold.WindowKind,
		"deliveries":     deliveries,
	})
	if errMarshal != nil {
		return fmt.Errorf("alerts: marshal firing metadata: %w", errMarshal)
	}

	row := models.AlertHistory{
		ThresholdID:       threshold.ID,
		TriggeredAt:       now,
		CreditsUsedMicros: used,
		CapMicros:         threshold.CapMicros,
		EmailSent:         allSent,
		Metadata:          datatypes.JSON(payload),
		CreatedAt:         now,
	}
	if errCreate := c.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("alerts: record firing: %w", errCreate)
	}
	return nil
}
