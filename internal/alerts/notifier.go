package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/mailer"
	"github.com/upsurgeiq/creditwatch/internal/models"

	log "github.com/sirupsen/logrus"
)

// DeliveryResult records one recipient's send outcome. Err is nil on success.
type DeliveryResult struct {
	Recipient string
	Err       error
}

// Notifier renders breach emails and fans them out to a threshold's
// recipients. Each recipient is attempted independently so one bad address
// never blocks the others.
type Notifier struct {
	mailer mailer.Mailer
}

// NewNotifier constructs a Notifier. A nil mailer is allowed; sends then fail
// with a configuration error and the failure is recorded per recipient.
func NewNotifier(m mailer.Mailer) *Notifier {
	return &Notifier{mailer: m}
}

// NotifyBreach sends the breach email to every recipient of the threshold and
// returns one result per recipient, in recipient order.
func (n *Notifier) NotifyBreach(ctx context.Context, threshold *models.AlertThreshold, usedMicros int64, at time.Time) []DeliveryResult {
	recipients := SplitRecipients(threshold.NotifyEmails)
	results := make([]DeliveryResult, 0, len(recipients))
	subject := breachSubject(threshold)
	body := breachBody(threshold, usedMicros, at)
	for _, recipient := range recipients {
		var errSend error
		if n == nil || n.mailer == nil {
			errSend = fmt.Errorf("mailer not configured")
		} else {
			errSend = n.mailer.Send(ctx, recipient, subject, body)
		}
		if errSend != nil {
			log.Warnf("alert %q: send to %s failed: %v", threshold.Name, recipient, errSend)
		}
		results = append(results, DeliveryResult{Recipient: recipient, Err: errSend})
	}
	return results
}

func breachSubject(threshold *models.AlertThreshold) string {
	return fmt.Sprintf("[CreditWatch] %s exceeded", threshold.Name)
}

func breachBody(threshold *models.AlertThreshold, usedMicros int64, at time.Time) string {
	used := ledger.FormatCredits(usedMicros)
	capValue := ledger.FormatCredits(threshold.CapMicros)
	pct := "n/a"
	if threshold.CapMicros > 0 {
		pct = fmt.Sprintf("%.1f%%", float64(usedMicros)/float64(threshold.CapMicros)*100)
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto">`)
	b.WriteString(`<h2 style="color:#c0392b">Credit usage alert</h2>`)
	b.WriteString(fmt.Sprintf(`<p>The threshold <strong>%s</strong> has been exceeded.</p>`, html.EscapeString(threshold.Name)))
	b.WriteString(`<table style="border-collapse:collapse;width:100%">`)
	writeRow := func(label, value string) {
		b.WriteString(`<tr><td style="padding:6px 12px;border:1px solid #ddd;background:#f8f8f8">`)
		b.WriteString(html.EscapeString(label))
		b.WriteString(`</td><td style="padding:6px 12px;border:1px solid #ddd">`)
		b.WriteString(html.EscapeString(value))
		b.WriteString(`</td></tr>`)
	}
	writeRow("Window", string(threshold.WindowKind))
	writeRow("Credits used", used)
	writeRow("Cap", capValue)
	writeRow("Usage", pct)
	writeRow("Checked at", at.Format(time.RFC1123))
	b.WriteString(`</table>`)
	b.WriteString(`<p style="color:#777;font-size:12px">This alert fires at most once per window. Review usage in the admin console.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
