package domain

import (
	"testing"
	"time"
)

func TestFormatCurrency(t *testing.T) {
	tests := map[int64]string{
		0:       "Rs. 0",
		5:       "Rs. 5",
		999:     "Rs. 999",
		1000:    "Rs. 1,000",
		25000:   "Rs. 25,000",
		1234567: "Rs. 1,234,567",
		-2000:   "Rs. -2,000",
	}
	for in, want := range tests {
		if got := FormatCurrency(in); got != want {
			t.Errorf("FormatCurrency(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTrialRemaining(t *testing.T) {
	d := 3*24*time.Hour + 4*time.Hour + 5*time.Minute + 30*time.Second
	if got := FormatTrialRemaining(d); got != "3 days, 4 hours, 5 minutes" {
		t.Fatalf("FormatTrialRemaining() = %q", got)
	}
	if got := FormatTrialRemaining(0); got != "No trial period" {
		t.Fatalf("FormatTrialRemaining(0) = %q", got)
	}
}
