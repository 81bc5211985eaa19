package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     string
	}{
		{"1234.5", "", "KES 1,234.50"},
		{"0", "KES", "KES 0.00"},
		{"999.999", "KES", "KES 1,000.00"},
		{"-20", "USD", "-USD 20.00"},
		{"1234567.891", "KES", "KES 1,234,567.89"},
	}
	for _, tt := range tests {
		d := decimal.RequireFromString(tt.in)
		if got := FormatMoney(d, tt.currency); got != tt.want {
			t.Errorf("FormatMoney(%s, %q) = %q, want %q", tt.in, tt.currency, got, tt.want)
		}
	}
}

func TestFormatMoneyCompact(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{950, "KES 950"},
		{9999, "KES 9999"},
		{12_500, "KES 12.5K"},
		{1_234_567, "KES 1.2M"},
	}
	for _, tt := range tests {
		if got := FormatMoneyCompact(decimal.NewFromInt(tt.in), ""); got != tt.want {
			t.Errorf("FormatMoneyCompact(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	if got := FormatDelta(decimal.NewFromInt(1500), decimal.NewFromInt(1000), "KES"); got != "+KES 500.00" {
		t.Errorf("up = %q", got)
	}
	if got := FormatDelta(decimal.NewFromInt(1000), decimal.NewFromInt(1500), "KES"); got != "-KES 500.00" {
		t.Errorf("down = %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1, "member", "members"); got != "1 member" {
		t.Errorf("got %q", got)
	}
	if got := FormatCount(1200, "member", "members"); got != "1,200 members" {
		t.Errorf("got %q", got)
	}
}

func TestFormatDateAndRelative(t *testing.T) {
	if FormatDate(time.Time{}) != "-" {
		t.Error("zero date should render as -")
	}
	d := time.Date(2025, 3, 9, 12, 0, 0, 0, time.Local)
	if got := FormatDate(d); got != "09 Mar 2025" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatRelative(d, d.Add(72*time.Hour)); got != "3 days ago" {
		t.Errorf("FormatRelative = %q", got)
	}
	if got := FormatRelative(time.Time{}, d); got != "never" {
		t.Errorf("FormatRelative(zero) = %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.875); got != "87.5%" {
		t.Errorf("FormatPercent = %q", got)
	}
}
