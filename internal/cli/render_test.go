package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderTableAlignsWideCells(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Change", "Amount"},
		Rows: [][]string{
			{"Contribution", "500.00 → 750.00"},
			{"Fine", "50.00"},
		},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d:\n%s", len(lines), out)
	}
	want := lipgloss.Width(lines[0])
	for i, l := range lines {
		if w := lipgloss.Width(l); w != want {
			t.Errorf("line %d width %d, want %d: %q", i, w, want, l)
		}
	}
	if !strings.Contains(lines[4], "  50.00 ") {
		t.Errorf("amount column not right-aligned: %q", lines[4])
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 5, 10}); got != "▁▄█" {
		t.Errorf("sparkline = %q", got)
	}
	if RenderSparkline(nil) != "" {
		t.Error("empty series should render empty")
	}
}

func TestRenderKeyValues(t *testing.T) {
	out := RenderKeyValues("Umoja", [][2]string{{"Balance", "KES 10.00"}, {"Members", "12"}})
	if !strings.Contains(out, "Balance  KES 10.00") || !strings.Contains(out, "Members  12") {
		t.Errorf("output:\n%s", out)
	}
}
