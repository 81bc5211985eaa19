package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

func (a App) renderGovernanceTab(cw int) string {
	t := theme.Active
	changes := a.data.Changes
	inner := components.CardInnerWidth(cw)

	title := fmt.Sprintf("Proposals (%d pending of %d)", len(a.pending), len(changes))
	if len(changes) == 0 {
		return components.ContentCard(title, emptyState("No settings changes have been proposed"), cw)
	}

	cols := []column{
		{title: "Proposal", width: 24},
		{title: "Change"},
		{title: "For", width: 4, right: true},
		{title: "Against", width: 7, right: true},
		{title: "Status", width: 9},
		{title: "Proposed", width: 11, right: true},
		{title: "", width: 5},
	}
	rows := make([][]cell, len(changes))
	for i, c := range changes {
		summary := ""
		if c.Payload != nil {
			summary = c.Payload.Summary()
		}
		mine := ""
		if c.HasVoted(a.user.ID) {
			mine = "voted"
		}
		rows[i] = []cell{
			plain(c.Kind.Label()),
			{text: summary, color: t.TextMuted},
			{text: fmt.Sprintf("%d", len(c.Approvals)), color: t.Green},
			{text: fmt.Sprintf("%d", len(c.Rejections)), color: t.Red},
			{text: string(c.Status), color: t.Status(string(c.Status))},
			{text: cli.FormatDate(c.CreatedAt), color: t.TextDim},
			{text: mine, color: t.Accent},
		}
	}

	var b strings.Builder
	b.WriteString(components.ContentCard(title, renderRows(cols, rows, inner, a.govCursor), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Details", a.renderChangeDetail(changes[a.govCursor], inner), cw))
	return b.String()
}

func (a App) renderChangeDetail(c model.SettingsChange, w int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	hint := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	var b strings.Builder
	line := func(k, v string) {
		b.WriteString(label.Render(fmt.Sprintf("%-12s", k)))
		b.WriteString(value.Render(truncStr(v, w-12)))
		b.WriteString("\n")
	}

	line("Proposal", c.Kind.Label())
	if c.Payload != nil {
		line("Change", c.Payload.Summary())
	}
	line("Proposed by", a.memberName(c.ProposedBy))
	line("Status", string(c.Status))

	for _, v := range c.Approvals {
		line("  for", voterLabel(a, v))
	}
	for _, v := range c.Rejections {
		line("  against", voterLabel(a, v))
	}

	switch {
	case c.Status != model.ChangePending:
	case c.HasVoted(a.user.ID):
		b.WriteString(label.Render("You have voted on this proposal"))
	case a.user.CanApproveChanges():
		b.WriteString(hint.Render("Press enter to vote"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func voterLabel(a App, v model.Vote) string {
	name := v.UserName
	if name == "" {
		name = a.memberName(v.UserID)
	}
	if v.Reason != "" {
		name += ": " + v.Reason
	}
	return name
}

// memberName maps a user or member id to a display name.
func (a App) memberName(id string) string {
	for _, m := range a.data.Members {
		if m.ID == id || (m.UserID != "" && m.UserID == id) {
			return m.Name
		}
	}
	if id == a.user.ID {
		return a.user.DisplayName()
	}
	return id
}
