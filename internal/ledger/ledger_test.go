package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/db"
	"github.com/upsurgeiq/creditwatch/internal/models"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestRecordAndSum(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)
	ctx := context.Background()

	amounts := []string{"2.5", "0.75", "10", "0.000001"}
	var want int64
	for _, amount := range amounts {
		micros, errParse := ParseCredits(amount)
		if errParse != nil {
			t.Fatalf("parse %q: %v", amount, errParse)
		}
		want += micros
		id, errRecord := l.Record(ctx, RecordParams{
			UserID:        1,
			Feature:       FeaturePressRelease,
			CreditsMicros: micros,
			TokensUsed:    100,
			Metadata:      map[string]any{"model": "gpt-4"},
		})
		if errRecord != nil {
			t.Fatalf("record %q: %v", amount, errRecord)
		}
		if id == 0 {
			t.Fatal("record returned zero id")
		}
	}

	got, errSum := l.SumCreditsMicros(ctx, nil, nil)
	if errSum != nil {
		t.Fatalf("sum: %v", errSum)
	}
	if got != want {
		t.Fatalf("sum = %d, want %d", got, want)
	}
}

func TestSumWindowFilter(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)
	ctx := context.Background()

	old := models.CreditUsage{
		UserID:        1,
		Feature:       FeatureAIChat,
		CreditsMicros: 5 * MicrosPerCredit,
		CreatedAt:     time.Now().Add(-48 * time.Hour),
	}
	if errCreate := conn.Create(&old).Error; errCreate != nil {
		t.Fatalf("seed old row: %v", errCreate)
	}
	if _, errRecord := l.Record(ctx, RecordParams{UserID: 1, Feature: FeatureAIChat, CreditsMicros: 3 * MicrosPerCredit}); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	windowStart := time.Now().Add(-time.Hour)
	got, errSum := l.SumCreditsMicros(ctx, &windowStart, nil)
	if errSum != nil {
		t.Fatalf("sum: %v", errSum)
	}
	if got != 3*MicrosPerCredit {
		t.Fatalf("windowed sum = %d, want %d", got, 3*MicrosPerCredit)
	}

	total, errTotal := l.SumCreditsMicros(ctx, nil, nil)
	if errTotal != nil {
		t.Fatalf("total sum: %v", errTotal)
	}
	if total != 8*MicrosPerCredit {
		t.Fatalf("total sum = %d, want %d", total, 8*MicrosPerCredit)
	}
}

func TestSumUserFilter(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)
	ctx := context.Background()

	for userID, micros := range map[uint64]int64{1: 2 * MicrosPerCredit, 2: 7 * MicrosPerCredit} {
		if _, errRecord := l.Record(ctx, RecordParams{UserID: userID, Feature: FeatureOther, CreditsMicros: micros}); errRecord != nil {
			t.Fatalf("record user %d: %v", userID, errRecord)
		}
	}

	userID := uint64(2)
	got, errSum := l.SumCreditsMicros(ctx, nil, &userID)
	if errSum != nil {
		t.Fatalf("sum: %v", errSum)
	}
	if got != 7*MicrosPerCredit {
		t.Fatalf("user sum = %d, want %d", got, 7*MicrosPerCredit)
	}
}

func TestSumEmptyLedgerIsZero(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)

	got, errSum := l.SumCreditsMicros(context.Background(), nil, nil)
	if errSum != nil {
		t.Fatalf("sum: %v", errSum)
	}
	if got != 0 {
		t.Fatalf("empty ledger sum = %d, want 0", got)
	}
}

func TestRecordValidation(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)
	ctx := context.Background()

	if _, errRecord := l.Record(ctx, RecordParams{UserID: 0, CreditsMicros: 1}); errRecord == nil {
		t.Fatal("record with zero user id succeeded")
	}
	if _, errRecord := l.Record(ctx, RecordParams{UserID: 1, CreditsMicros: -1}); errRecord == nil {
		t.Fatal("record with negative credits succeeded")
	}

	id, errRecord := l.Record(ctx, RecordParams{UserID: 1, CreditsMicros: 1})
	if errRecord != nil {
		t.Fatalf("record without feature: %v", errRecord)
	}
	var row models.CreditUsage
	if errFind := conn.First(&row, id).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	if row.Feature != FeatureOther {
		t.Fatalf("feature defaulted to %q, want %q", row.Feature, FeatureOther)
	}
}
