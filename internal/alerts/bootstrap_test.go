package alerts

import (
	"context"
	"testing"

	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"
)

func TestEnsureDefaultThresholdsSeedsOnce(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	if errSeed := EnsureDefaultThresholds(ctx, conn, "ops@example.com"); errSeed != nil {
		t.Fatalf("seed: %v", errSeed)
	}

	var rows []models.AlertThreshold
	if errFind := conn.Order("id ASC").Find(&rows).Error; errFind != nil {
		t.Fatalf("load thresholds: %v", errFind)
	}
	if len(rows) != 2 {
		t.Fatalf("seeded %d thresholds, want 2", len(rows))
	}
	if rows[0].WindowKind != models.WindowDaily || rows[0].CapMicros != 100*ledger.MicrosPerCredit {
		t.Fatalf("unexpected daily default: %+v", rows[0])
	}
	if rows[1].WindowKind != models.WindowMonthly || rows[1].CapMicros != 2000*ledger.MicrosPerCredit {
		t.Fatalf("unexpected monthly default: %+v", rows[1])
	}
	for _, row := range rows {
		if !row.IsActive || row.NotifyEmails != "ops@example.com" {
			t.Fatalf("bad seeded threshold: %+v", row)
		}
	}

	// A second call is a no-op even after operator edits.
	if errDelete := conn.Delete(&models.AlertThreshold{}, rows[0].ID).Error; errDelete != nil {
		t.Fatalf("delete threshold: %v", errDelete)
	}
	if errSeed := EnsureDefaultThresholds(ctx, conn, "ops@example.com"); errSeed != nil {
		t.Fatalf("reseed: %v", errSeed)
	}
	var count int64
	if errCount := conn.Model(&models.AlertThreshold{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("reseed created rows: count = %d, want 1", count)
	}
}

func TestEnsureDefaultThresholdsWithoutEmailSkips(t *testing.T) {
	conn := openTestDB(t)

	if errSeed := EnsureDefaultThresholds(context.Background(), conn, "   "); errSeed != nil {
		t.Fatalf("seed: %v", errSeed)
	}
	var count int64
	if errCount := conn.Model(&models.AlertThreshold{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("seeded without recipient: count = %d", count)
	}
}
