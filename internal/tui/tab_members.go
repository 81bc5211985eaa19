package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

func (a App) renderMembersTab(cw int) string {
	t := theme.Active
	ccy := a.currency()
	inner := components.CardInnerWidth(cw)

	if len(a.standings) == 0 {
		return components.ContentCard("Members", emptyState("No members yet"), cw)
	}

	compact := a.isCompactLayout()
	cols := []column{
		{title: "Name"},
		{title: "Role", width: 12},
		{title: "Contributed", width: 18, right: true},
		{title: "Share", width: 7, right: true},
		{title: "Loan balance", width: 18, right: true},
		{title: "Fines due", width: 16, right: true},
	}
	if !compact {
		cols = append(cols, column{title: "Last activity", width: 16, right: true})
	}

	now := time.Now()
	rows := make([][]cell, 0, len(a.standings))
	for _, ms := range a.standings {
		name := ms.Member.Name
		if !ms.Member.IsActive() {
			name += " (inactive)"
		}
		nameCell := plain(name)
		if ms.Member.UserID != "" && ms.Member.UserID == a.user.ID {
			nameCell.color = t.AccentBright
		}

		loan := plain(cli.FormatMoney(ms.LoanBalance, ccy))
		if ms.LoanBalance.IsPositive() {
			loan.color = t.Orange
		}
		fines := plain(cli.FormatMoney(ms.UnpaidFines, ccy))
		if ms.UnpaidFines.IsPositive() {
			fines.color = t.Red
		}

		row := []cell{
			nameCell,
			{text: string(ms.Member.Role), color: t.TextMuted},
			{text: cli.FormatMoney(ms.Contributed, ccy), color: t.Green},
			plain(fmt.Sprintf("%.1f%%", ms.SharePercent)),
			loan,
			fines,
		}
		if !compact {
			row = append(row, cell{text: cli.FormatRelative(ms.LastActivity, now), color: t.TextDim})
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("Members (%d)", len(a.standings))
	var b strings.Builder
	b.WriteString(components.ContentCard(title, renderRows(cols, rows, inner, -1), cw))
	b.WriteString("\n")

	// Contribution share bars for the top contributors.
	top := a.standings
	if len(top) > 8 {
		top = top[:8]
	}
	labelW := 18
	barW := max(inner-labelW-6, 10)
	var bars []string
	for _, ms := range top {
		bars = append(bars, components.RateBar(ms.Member.Name, ms.SharePercent/100, labelW, barW))
	}
	b.WriteString(components.ContentCard("Share of Contributions", strings.Join(bars, "\n"), cw))
	return b.String()
}
