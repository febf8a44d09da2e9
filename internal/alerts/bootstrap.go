package alerts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Default caps seeded on first run, in micro-credits.
const (
	defaultDailyCapMicros   = 100 * ledger.MicrosPerCredit
	defaultMonthlyCapMicros = 2000 * ledger.MicrosPerCredit
)

// EnsureDefaultThresholds seeds starter thresholds when the registry is
// empty. It is idempotent and safe to call on every process start: once any
// threshold exists (seeded or operator-created) it does nothing.
func EnsureDefaultThresholds(ctx context.Context, db *gorm.DB, notifyEmail string) error {
	if db == nil {
		return errors.New("alerts: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	notifyEmail = strings.TrimSpace(notifyEmail)
	if notifyEmail == "" {
		log.Warn("alert bootstrap: no notify email configured, skipping default thresholds")
		return nil
	}

	var count int64
	if errCount := db.WithContext(ctx).Model(&models.AlertThreshold{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	defaults := []models.AlertThreshold{
		{
			Name:         "Daily Credit Limit",
			WindowKind:   models.WindowDaily,
			CapMicros:    defaultDailyCapMicros,
			IsActive:     true,
			NotifyEmails: notifyEmail,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			Name:         "Monthly Credit Budget",
			WindowKind:   models.WindowMonthly,
			CapMicros:    defaultMonthlyCapMicros,
			IsActive:     true,
			NotifyEmails: notifyEmail,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if errCreate := db.WithContext(ctx).Create(&defaults).Error; errCreate != nil {
		return errCreate
	}
	log.Infof("alert bootstrap: seeded %d default thresholds (notify=%s)", len(defaults), notifyEmail)
	return nil
}
