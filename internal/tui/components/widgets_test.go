package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTabVisualWidthMatchesBar(t *testing.T) {
	for active := range Tabs {
		want := 0
		for i, tab := range Tabs {
			want += TabVisualWidth(tab, i == active)
		}
		want += len(Tabs) - 1 // separators

		bar := RenderTabBar(active, want)
		if got := lipgloss.Width(bar); got != want {
			t.Errorf("active=%d: bar width %d, want %d", active, got, want)
		}
	}
}

func TestTabIdxByKey(t *testing.T) {
	if got := TabIdxByKey('g'); got != 3 {
		t.Errorf("TabIdxByKey(g) = %d, want 3", got)
	}
	if got := TabIdxByKey('z'); got != -1 {
		t.Errorf("TabIdxByKey(z) = %d, want -1", got)
	}
}

func TestRenderStatusBarFillsWidth(t *testing.T) {
	bar := RenderStatusBar(100, Status{User: "Wanjiku", Role: "treasurer", DataAge: "2 minutes ago"})
	if got := lipgloss.Width(bar); got != 100 {
		t.Errorf("status bar width = %d, want 100", got)
	}
	if !strings.Contains(bar, "Wanjiku") || !strings.Contains(bar, "treasurer") {
		t.Errorf("status bar missing user: %q", bar)
	}

	refreshing := RenderStatusBar(100, Status{Refreshing: true, DataAge: "now"})
	if !strings.Contains(refreshing, "refreshing") || strings.Contains(refreshing, "updated") {
		t.Errorf("refreshing bar = %q", refreshing)
	}
}

func TestRateBarClamps(t *testing.T) {
	if !strings.Contains(RateBar("Contributed", 1.7, 12, 20), "100%") {
		t.Error("rate above 1 should clamp to 100%")
	}
	if !strings.Contains(RateBar("Contributed", -0.2, 12, 20), "0%") {
		t.Error("negative rate should clamp to 0%")
	}
}

func TestProgressBarWidth(t *testing.T) {
	bar := ProgressBar(0.5, 20)
	if !strings.Contains(bar, "50%") {
		t.Errorf("progress bar = %q", bar)
	}
	if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 20 {
		t.Errorf("bar cells = %d, want 20", got)
	}
}
