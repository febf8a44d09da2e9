package ledger

import (
	"math"
	"testing"
)

func TestParseCreditsExactness(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 1_000_000},
		{"100", 100_000_000},
		{"2.5", 2_500_000},
		{"0.000001", 1},
		{"0.1", 100_000},
		{"1234.567890", 1_234_567_890},
		{"-3.25", -3_250_000},
		{"+7", 7_000_000},
		{".5", 500_000},
		{"2.", 2_000_000},
	}
	for _, tc := range cases {
		got, errParse := ParseCredits(tc.in)
		if errParse != nil {
			t.Fatalf("ParseCredits(%q): %v", tc.in, errParse)
		}
		if got != tc.want {
			t.Fatalf("ParseCredits(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseCreditsRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1.2345678", "1.2.3", "1,5", "."} {
		if _, errParse := ParseCredits(in); errParse == nil {
			t.Fatalf("ParseCredits(%q) succeeded, want error", in)
		}
	}
}

func TestParseCreditsRejectsOverflow(t *testing.T) {
	// Largest representable amount: math.MaxInt64 micro-credits.
	got, errParse := ParseCredits("9223372036854.775807")
	if errParse != nil {
		t.Fatalf("max amount rejected: %v", errParse)
	}
	if got != math.MaxInt64 {
		t.Fatalf("max amount = %d, want %d", got, int64(math.MaxInt64))
	}

	for _, in := range []string{"9223372036854.775808", "9223372036855", "9300000000000000"} {
		if _, errParse := ParseCredits(in); errParse == nil {
			t.Fatalf("ParseCredits(%q) succeeded, want out-of-range error", in)
		}
	}
}

func TestFormatCreditsRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "1", "2.5", "0.000001", "1234.56789", "-3.25"} {
		micros, errParse := ParseCredits(in)
		if errParse != nil {
			t.Fatalf("ParseCredits(%q): %v", in, errParse)
		}
		out := FormatCredits(micros)
		back, errBack := ParseCredits(out)
		if errBack != nil {
			t.Fatalf("ParseCredits(FormatCredits(%q)=%q): %v", in, out, errBack)
		}
		if back != micros {
			t.Fatalf("round trip %q: %d != %d", in, back, micros)
		}
	}
}

func TestFormatCreditsTrimsTrailingZeros(t *testing.T) {
	if got := FormatCredits(2_500_000); got != "2.5" {
		t.Fatalf("FormatCredits(2500000) = %q, want 2.5", got)
	}
	if got := FormatCredits(100_000_000); got != "100" {
		t.Fatalf("FormatCredits(100000000) = %q, want 100", got)
	}
}
