// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the backend does not report one.
const DefaultCurrency = "KES"

// FormatMoney formats an amount with two decimals and thousands separators.
// e.g., 1234.5 -> "KES 1,234.50", -20 -> "-KES 20.00"
func FormatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + currency + " " + groupDigits(whole) + "." + frac
}

// FormatMoneyCompact formats large amounts with a suffix for cards.
// e.g., 1234567 -> "KES 1.2M", 950 -> "KES 950"
func FormatMoneyCompact(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	f := d.InexactFloat64()
	abs := f
	if abs < 0 {
		abs = -abs
	}

	var v string
	switch {
	case abs >= 1_000_000_000:
		v = fmt.Sprintf("%.1fB", f/1_000_000_000)
	case abs >= 1_000_000:
		v = fmt.Sprintf("%.1fM", f/1_000_000)
	case abs >= 10_000:
		v = fmt.Sprintf("%.1fK", f/1_000)
	default:
		v = d.Round(0).String()
	}
	return currency + " " + v
}

// FormatDelta formats the change between two amounts with an explicit sign.
func FormatDelta(current, previous decimal.Decimal, currency string) string {
	delta := current.Sub(previous)
	if delta.IsNegative() {
		return FormatMoney(delta, currency)
	}
	return "+" + FormatMoney(delta, currency)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatCount formats n with the singular or plural noun.
// e.g., (1, "member", "members") -> "1 member"
func FormatCount(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return humanize.Comma(int64(n)) + " " + plural
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatDate formats a calendar date. Zero times render as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006")
}

// FormatDateTime formats a timestamp to the minute.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006 15:04")
}

// FormatRelative describes t relative to now, e.g. "3 days ago".
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatMonth returns a short month label for charts, e.g. "Mar".
func FormatMonth(t time.Time) string {
	return t.Local().Format("Jan")
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
