package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"", TF1h},
		{"5m", TF5m},
		{"1d", TF1d},
		{"7m", TF1h},
		{"bogus", TF1h},
	}
	for _, c := range cases {
		if got := NormalizeTimeframe(c.in); got != c.want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestIsValidTimeframe(t *testing.T) {
	for _, tf := range AllTimeframes() {
		if !IsValidTimeframe(tf) {
			t.Fatalf("%s should be valid", tf)
		}
	}
	if IsValidTimeframe("2h") {
		t.Fatalf("2h should not be valid")
	}
}

func TestTimeframeDuration(t *testing.T) {
	if got := TF4h.Duration(); got != 4*time.Hour {
		t.Fatalf("4h duration = %v", got)
	}
	if got := Timeframe("bogus").Duration(); got != time.Hour {
		t.Fatalf("unknown timeframe duration = %v, want 1h default", got)
	}
}
