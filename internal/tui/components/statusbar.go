package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bl4ckh401/chama/internal/tui/theme"
)

// Status is what the bottom bar shows.
type Status struct {
	User       string
	Role       string
	DataAge    string
	Refreshing bool
	// Notice is the latest notification or submit result.
	Notice string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s Status) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	user := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	notice := lipgloss.NewStyle().Foreground(t.Yellow).Background(t.Surface)

	left := base.Render(" ") + key.Render("?") + base.Render(" help  ") +
		key.Render("r") + base.Render(" refresh  ") +
		key.Render("q") + base.Render(" quit")
	if s.Notice != "" {
		left += base.Render("  │  ") + notice.Render(truncate(s.Notice, width/2))
	}

	var right strings.Builder
	if s.Refreshing {
		right.WriteString(base.Render("refreshing… "))
	} else if s.DataAge != "" {
		right.WriteString(base.Render("updated " + s.DataAge + " "))
	}
	if s.User != "" {
		right.WriteString(user.Render(s.User))
		if s.Role != "" {
			right.WriteString(base.Render(" (" + s.Role + ")"))
		}
		right.WriteString(base.Render(" "))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right.String())
	if gap < 0 {
		gap = 0
	}
	return left + base.Render(strings.Repeat(" ", gap)) + right.String()
}
