package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bl4ckh401/chama/internal/tui/theme"
)

type column struct {
	title string
	// width 0 takes whatever is left.
	width int
	right bool
}

type cell struct {
	text  string
	color lipgloss.Color
}

func plain(s string) cell { return cell{text: s} }

// renderRows lays rows out in fixed-width columns inside width. When
// selected is a valid row index that row is highlighted.
func renderRows(cols []column, rows [][]cell, width, selected int) string {
	t := theme.Active

	widths := make([]int, len(cols))
	used := len(cols) - 1
	flex := -1
	for i, c := range cols {
		if c.width == 0 && flex < 0 {
			flex = i
			continue
		}
		widths[i] = c.width
		used += c.width
	}
	if flex >= 0 {
		widths[flex] = max(width-used, 6)
	}

	head := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Bold(true)
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString(head.Render(" "))
		}
		b.WriteString(head.Render(fit(c.title, widths[i], c.right)))
	}

	for r, row := range rows {
		b.WriteString("\n")
		bg := t.Surface
		if r == selected {
			bg = t.SurfaceHover
		}
		gap := lipgloss.NewStyle().Background(bg).Render(" ")
		for i, c := range cols {
			if i >= len(row) {
				break
			}
			if i > 0 {
				b.WriteString(gap)
			}
			fg := row[i].color
			if fg == "" {
				fg = t.TextPrimary
			}
			style := lipgloss.NewStyle().Foreground(fg).Background(bg)
			if r == selected && i == 0 {
				style = style.Bold(true)
			}
			b.WriteString(style.Render(fit(row[i].text, widths[i], c.right)))
		}
	}
	return b.String()
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int, right bool) string {
	s = truncStr(s, w)
	pad := w - lipgloss.Width(s)
	if pad <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", pad) + s
	}
	return s + strings.Repeat(" ", pad)
}

func emptyState(msg string) string {
	t := theme.Active
	return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Italic(true).Render(msg)
}
