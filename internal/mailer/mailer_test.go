package mailer

import (
	"context"
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@example.com", "ops@example.com", "Credit alert", "<p>hi</p>")

	headerEnd := strings.Index(msg, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("message has no header/body separator")
	}
	headers := msg[:headerEnd]
	for _, want := range []string{
		"From: noreply@example.com",
		"To: ops@example.com",
		"Subject: Credit alert",
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
	} {
		if !strings.Contains(headers, want) {
			t.Fatalf("headers missing %q:\n%s", want, headers)
		}
	}
	if !strings.Contains(msg[headerEnd:], "<p>hi</p>") {
		t.Fatal("body not included")
	}
}

func TestSendValidation(t *testing.T) {
	m := NewSMTP(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	if errSend := m.Send(context.Background(), "  ", "s", "b"); errSend == nil {
		t.Fatal("empty recipient accepted")
	}

	unconfigured := NewSMTP(Config{})
	if errSend := unconfigured.Send(context.Background(), "ops@example.com", "s", "b"); errSend == nil {
		t.Fatal("missing host accepted")
	}
}
