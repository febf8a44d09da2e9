package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/db"
	"github.com/upsurgeiq/creditwatch/internal/ledger"
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

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errSend, ok := f.failTo[to]; ok {
		return errSend
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, mail := range f.sent {
		out = append(out, mail.to)
	}
	return out
}

func seedThreshold(t *testing.T, conn *gorm.DB, kind models.WindowKind, capCredits int64, active bool, emails string) *models.AlertThreshold {
	t.Helper()
	threshold := models.AlertThreshold{
		Name:         string(kind) + " threshold",
		WindowKind:   kind,
		CapMicros:    capCredits * ledger.MicrosPerCredit,
		IsActive:     active,
		NotifyEmails: emails,
	}
	if errCreate := conn.Create(&threshold).Error; errCreate != nil {
		t.Fatalf("seed threshold: %v", errCreate)
	}
	return &threshold
}

func recordUsage(t *testing.T, l *ledger.Ledger, credits int64) {
	t.Helper()
	_, errRecord := l.Record(context.Background(), ledger.RecordParams{
		UserID:        1,
		Feature:       ledger.FeatureAIChat,
		CreditsMicros: credits * ledger.MicrosPerCredit,
	})
	if errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}
}

func historyCount(t *testing.T, conn *gorm.DB, thresholdID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.AlertHistory{}).Where("threshold_id = ?", thresholdID).Count(&count).Error; errCount != nil {
		t.Fatalf("count history: %v", errCount)
	}
	return count
}

func TestCheckerBelowCapDoesNotFire(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{}
	checker := NewChecker(conn, l, NewNotifier(m))

	threshold := seedThreshold(t, conn, models.WindowDaily, 100, true, "ops@example.com")
	recordUsage(t, l, 60)

	if errCycle := checker.RunCycle(context.Background()); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 0 {
		t.Fatalf("history rows = %d, want 0", count)
	}
	if len(m.sentTo()) != 0 {
		t.Fatalf("mail sent below cap: %v", m.sentTo())
	}
}

func TestCheckerFiresOnceWithUsageSnapshot(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{}
	checker := NewChecker(conn, l, NewNotifier(m))
	ctx := context.Background()

	threshold := seedThreshold(t, conn, models.WindowDaily, 100, true, "ops@example.com")

	recordUsage(t, l, 60)
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("first cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 0 {
		t.Fatalf("fired below cap")
	}

	recordUsage(t, l, 50)
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("second cycle: %v", errCycle)
	}
	var firing models.AlertHistory
	if errFind := conn.Where("threshold_id = ?", threshold.ID).First(&firing).Error; errFind != nil {
		t.Fatalf("load firing: %v", errFind)
	}
	if firing.CreditsUsedMicros != 110*ledger.MicrosPerCredit {
		t.Fatalf("snapshot usage = %d, want %d", firing.CreditsUsedMicros, 110*ledger.MicrosPerCredit)
	}
	if firing.CapMicros != threshold.CapMicros {
		t.Fatalf("snapshot cap = %d, want %d", firing.CapMicros, threshold.CapMicros)
	}
	if !firing.EmailSent {
		t.Fatal("email_sent = false, want true")
	}
	if got := m.sentTo(); len(got) != 1 || got[0] != "ops@example.com" {
		t.Fatalf("mail recipients = %v", got)
	}

	// Third cycle inside the same window is suppressed.
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("third cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 1 {
		t.Fatalf("history rows = %d, want 1", count)
	}
	if len(m.sentTo()) != 1 {
		t.Fatalf("duplicate mail sent: %v", m.sentTo())
	}
}

func TestCheckerTotalFiresOnceEver(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{}
	checker := NewChecker(conn, l, NewNotifier(m))
	ctx := context.Background()

	threshold := seedThreshold(t, conn, models.WindowTotal, 10, true, "ops@example.com")
	recordUsage(t, l, 20)

	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 1 {
		t.Fatalf("history rows = %d, want 1", count)
	}

	// Far in the future the firing still suppresses: total never resets.
	checker.now = func() time.Time { return time.Now().AddDate(0, 2, 0) }
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("future cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 1 {
		t.Fatalf("total threshold fired twice")
	}
}

func TestCheckerDailyWindowResets(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{}
	checker := NewChecker(conn, l, NewNotifier(m))
	ctx := context.Background()

	threshold := seedThreshold(t, conn, models.WindowDaily, 50, true, "ops@example.com")

	yesterday := time.Now().AddDate(0, 0, -1)
	oldUsage := models.CreditUsage{
		UserID:        1,
		Feature:       ledger.FeatureAIChat,
		CreditsMicros: 200 * ledger.MicrosPerCredit,
		CreatedAt:     yesterday,
	}
	if errCreate := conn.Create(&oldUsage).Error; errCreate != nil {
		t.Fatalf("seed old usage: %v", errCreate)
	}
	oldFiring := models.AlertHistory{
		ThresholdID:       threshold.ID,
		TriggeredAt:       yesterday,
		CreditsUsedMicros: 200 * ledger.MicrosPerCredit,
		CapMicros:         threshold.CapMicros,
		EmailSent:         true,
		CreatedAt:         yesterday,
	}
	if errCreate := conn.Create(&oldFiring).Error; errCreate != nil {
		t.Fatalf("seed old firing: %v", errCreate)
	}

	// Yesterday's usage and firing are outside today's window: 60 fresh
	// credits breach the 50 cap and fire again.
	recordUsage(t, l, 60)
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 2 {
		t.Fatalf("history rows = %d, want 2", count)
	}

	var latest models.AlertHistory
	if errFind := conn.Where("threshold_id = ?", threshold.ID).Order("id DESC").First(&latest).Error; errFind != nil {
		t.Fatalf("load latest firing: %v", errFind)
	}
	if latest.CreditsUsedMicros != 60*ledger.MicrosPerCredit {
		t.Fatalf("snapshot counted stale usage: %d", latest.CreditsUsedMicros)
	}
}

func TestCheckerSkipsInactiveThresholds(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{}
	checker := NewChecker(conn, l, NewNotifier(m))

	threshold := seedThreshold(t, conn, models.WindowDaily, 10, false, "ops@example.com")
	recordUsage(t, l, 50)

	if errCycle := checker.RunCycle(context.Background()); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 0 {
		t.Fatalf("inactive threshold fired")
	}
}

func TestCheckerFailedSendStillRecordsFiring(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{failTo: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}
	checker := NewChecker(conn, l, NewNotifier(m))
	ctx := context.Background()

	threshold := seedThreshold(t, conn, models.WindowDaily, 10, true, "bad@example.com,good@example.com")
	recordUsage(t, l, 20)

	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}

	var firing models.AlertHistory
	if errFind := conn.Where("threshold_id = ?", threshold.ID).First(&firing).Error; errFind != nil {
		t.Fatalf("load firing: %v", errFind)
	}
	if firing.EmailSent {
		t.Fatal("email_sent = true with a failed recipient")
	}
	if got := m.sentTo(); len(got) != 1 || got[0] != "good@example.com" {
		t.Fatalf("good recipient not attempted independently: %v", got)
	}

	var metadata struct {
		Deliveries []struct {
			Recipient string `json:"recipient"`
			Sent      bool   `json:"sent"`
			Error     string `json:"error"`
		} `json:"deliveries"`
	}
	if errUnmarshal := json.Unmarshal(firing.Metadata, &metadata); errUnmarshal != nil {
		t.Fatalf("unmarshal metadata: %v", errUnmarshal)
	}
	if len(metadata.Deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(metadata.Deliveries))
	}
	if metadata.Deliveries[0].Sent || metadata.Deliveries[0].Error == "" {
		t.Fatalf("failed delivery not recorded: %+v", metadata.Deliveries[0])
	}
	if !metadata.Deliveries[1].Sent {
		t.Fatalf("successful delivery not recorded: %+v", metadata.Deliveries[1])
	}

	// The recorded firing suppresses re-notification for the rest of the window.
	if errCycle := checker.RunCycle(ctx); errCycle != nil {
		t.Fatalf("second cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, threshold.ID); count != 1 {
		t.Fatalf("failed firing re-notified")
	}
}

func TestCheckerOneThresholdFailureDoesNotBlockOthers(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(conn)
	m := &fakeMailer{failTo: map[string]error{"first@example.com": errors.New("send failed")}}
	checker := NewChecker(conn, l, NewNotifier(m))

	first := seedThreshold(t, conn, models.WindowDaily, 10, true, "first@example.com")
	second := seedThreshold(t, conn, models.WindowWeekly, 15, true, "second@example.com")
	recordUsage(t, l, 20)

	if errCycle := checker.RunCycle(context.Background()); errCycle != nil {
		t.Fatalf("cycle: %v", errCycle)
	}
	if count := historyCount(t, conn, first.ID); count != 1 {
		t.Fatalf("first threshold rows = %d, want 1", count)
	}
	if count := historyCount(t, conn, second.ID); count != 1 {
		t.Fatalf("second threshold rows = %d, want 1", count)
	}
	if got := m.sentTo(); len(got) != 1 || got[0] != "second@example.com" {
		t.Fatalf("second threshold mail = %v", got)
	}
}
