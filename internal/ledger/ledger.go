// Package ledger owns the append-only credit usage store: the synchronous
// write path invoked by billable-action handlers and the windowed aggregation
// read path consumed by the alerting engine.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStorageUnavailable indicates a ledger read or write failed at the
// storage layer. Callers on the billable-action path must propagate it; the
// ledger is the source of truth for billing disputes and alerting, so writes
// are never silently dropped.
var ErrStorageUnavailable = errors.New("ledger: storage unavailable")

// Feature tags attached to credit usage rows.
const (
	FeaturePressRelease       = "press_release_generation"
	FeatureCampaignStrategy   = "campaign_strategy_generation"
	FeatureAIChat             = "ai_chat"
	FeatureImageGeneration    = "image_generation"
	FeatureVoiceTranscription = "voice_transcription"
	FeatureContentAnalysis    = "content_analysis"
	FeatureOther              = "other"
)

// RecordParams carries one credit consumption event. Metadata is a typed
// wrapper over the heterogeneous per-feature audit payload so call sites are
// not passing raw JSON around.
type RecordParams struct {
	UserID        uint64
	Feature       string
	CreditsMicros int64
	TokensUsed    int64
	Metadata      map[string]any
}

// Ledger persists and aggregates credit usage rows.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger backed by GORM.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one immutable usage row and returns its ID.
func (l *Ledger) Record(ctx context.Context, params RecordParams) (uint64, error) {
	if l == nil || l.db == nil {
		return 0, ErrStorageUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if params.UserID == 0 {
		return 0, errors.New("ledger: user id is required")
	}
	feature := strings.TrimSpace(params.Feature)
	if feature == "" {
		feature = FeatureOther
	}
	if params.CreditsMicros < 0 {
		return 0, errors.New("ledger: credits must be non-negative")
	}
	if params.TokensUsed < 0 {
		return 0, errors.New("ledger: token count must be non-negative")
	}

	var metadata datatypes.JSON
	if len(params.Metadata) > 0 {
		payload, errMarshal := json.Marshal(params.Metadata)
		if errMarshal != nil {
			return 0, fmt.Errorf("ledger: marshal metadata: %w", errMarshal)
		}
		metadata = datatypes.JSON(payload)
	}

	row := models.CreditUsage{
		UserID:        params.UserID,
		Feature:       feature,
		CreditsMicros: params.CreditsMicros,
		TokensUsed:    params.TokensUsed,
		Metadata:      metadata,
		CreatedAt:     time.Now(),
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Error("ledger: record usage failed")
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, errCreate)
	}
	log.Debugf("ledger: recorded %s credits for user %d (%s)", FormatCredits(params.CreditsMicros), params.UserID, feature)
	return row.ID, nil
}

// SumCreditsMicros aggregates stored usage database-side. A nil windowStart
// means all time (the total window kind); a nil userID means all accounts.
// The ledger grows without bound, so the sum must never be computed by
// loading rows into the process.
func (l *Ledger) SumCreditsMicros(ctx context.Context, windowStart *time.Time, userID *uint64) (int64, error) {
	if l == nil || l.db == nil {
		return 0, ErrStorageUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q := l.db.WithContext(ctx).
		Model(&models.CreditUsage{}).
		Select("COALESCE(SUM(credits_micros), 0)")
	if windowStart != nil {
		q = q.Where("created_at >= ?", *windowStart)
	}
	if userID != nil && *userID != 0 {
		q = q.Where("user_id = ?", *userID)
	}

	var total int64
	if errSum := q.Scan(&total).Error; errSum != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, errSum)
	}
	return total, nil
}
