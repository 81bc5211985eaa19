package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

func (a App) renderDocumentsTab(cw int) string {
	t := theme.Active
	inner := components.CardInnerWidth(cw)
	docs, policies := a.data.Documents, a.data.Policies

	var b strings.Builder

	docTitle := fmt.Sprintf("Documents (%d)", len(docs))
	if len(docs) == 0 {
		b.WriteString(components.ContentCard(docTitle, emptyState("No documents uploaded"), cw))
	} else {
		cols := []column{
			{title: "Title", width: 30},
			{title: "Type", width: 16},
			{title: "Link"},
			{title: "Added", width: 11, right: true},
		}
		rows := make([][]cell, len(docs))
		for i, d := range docs {
			rows[i] = []cell{
				plain(d.Title),
				{text: strings.ReplaceAll(string(d.Kind), "_", " "), color: t.TextMuted},
				{text: d.URL, color: t.Blue},
				{text: cli.FormatDate(d.CreatedAt), color: t.TextDim},
			}
		}
		selected := -1
		if a.docCursor < len(docs) {
			selected = a.docCursor
		}
		b.WriteString(components.ContentCard(docTitle, renderRows(cols, rows, inner, selected), cw))
	}
	b.WriteString("\n")

	polTitle := fmt.Sprintf("Policies (%d)", len(policies))
	if len(policies) == 0 {
		b.WriteString(components.ContentCard(polTitle, emptyState("No policies recorded"), cw))
	} else {
		cols := []column{
			{title: "Title", width: 30},
			{title: "Category", width: 16},
			{title: "Summary"},
			{title: "Effective", width: 11, right: true},
		}
		rows := make([][]cell, len(policies))
		for i, p := range policies {
			effective := "-"
			if p.EffectiveFrom != nil {
				effective = cli.FormatDate(*p.EffectiveFrom)
			}
			rows[i] = []cell{
				plain(p.Title),
				{text: p.Category, color: t.TextMuted},
				{text: firstLine(p.Body), color: t.TextMuted},
				{text: effective, color: t.TextDim},
			}
		}
		selected := a.docCursor - len(docs)
		b.WriteString(components.ContentCard(polTitle, renderRows(cols, rows, inner, selected), cw))

		if selected >= 0 && selected < len(policies) {
			body := lipgloss.NewStyle().
				Foreground(t.TextPrimary).
				Background(t.Surface).
				Width(inner).
				Render(policies[selected].Body)
			b.WriteString("\n")
			b.WriteString(components.ContentCard(policies[selected].Title, body, cw))
		}
	}

	b.WriteString("\n")
	b.WriteString(a.renderDocumentHints())
	return b.String()
}

func (a App) renderDocumentHints() string {
	t := theme.Active
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Background).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Background)

	var hints []string
	if a.user.CanManageDocuments() {
		hints = append(hints,
			key.Render("n")+desc.Render(" add document"),
			key.Render("p")+desc.Render(" add policy"),
			key.Render("x")+desc.Render(" delete selected"),
		)
	}
	if a.user.CanRequestClosure() {
		hints = append(hints, key.Render("c")+desc.Render(" request closure"))
	}
	if len(hints) == 0 {
		return desc.Render(" Only officials can change group records")
	}
	return " " + strings.Join(hints, desc.Render("  ·  "))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
