package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	cur, prev := a.cmp.Current, a.cmp.Previous
	ccy := a.currency()

	var b strings.Builder

	// Row 1: metric cards
	loansDelta := cli.FormatCount(cur.OpenLoans, "open loan", "open loans")
	loansColor := t.TextPrimary
	if cur.OverdueLoans > 0 {
		loansDelta += fmt.Sprintf(", %d overdue", cur.OverdueLoans)
		loansColor = t.Orange
	}
	metrics := []components.Metric{
		{Label: "Balance", Value: cli.FormatMoney(a.data.Chama.Balance, ccy), Delta: cli.FormatCount(len(a.data.Members), "member", "members")},
		{Label: fmt.Sprintf("Contributions (%dd)", a.days), Value: cli.FormatMoney(cur.Contributions, ccy), Delta: cli.FormatDelta(cur.Contributions, prev.Contributions, ccy) + " vs prior", Color: t.Green},
		{Label: "Loans outstanding", Value: cli.FormatMoney(cur.LoansOutstanding, ccy), Delta: loansDelta, Color: loansColor},
		{Label: "Net flow", Value: cli.FormatMoney(cur.NetFlow, ccy), Delta: cli.FormatCount(cur.Transactions, "transaction", "transactions"), Color: t.Money(!cur.NetFlow.IsNegative())},
	}
	if a.isCompactLayout() {
		b.WriteString(components.MetricCardRow(metrics[:2], cw))
		b.WriteString("\n")
		b.WriteString(components.MetricCardRow(metrics[2:], cw))
	} else {
		b.WriteString(components.MetricCardRow(metrics, cw))
	}
	b.WriteString("\n")

	// Row 2: monthly contributions chart
	if len(a.monthly) > 0 {
		vals := make([]float64, len(a.monthly))
		labels := make([]string, len(a.monthly))
		for i, m := range a.monthly {
			vals[i] = m.Contributions.InexactFloat64()
			labels[i] = m.Month.Format("Jan")
		}
		chartH := 10
		if a.isCompactLayout() {
			chartH = 7
		}
		b.WriteString(components.ContentCard(
			fmt.Sprintf("Monthly Contributions (%s)", ccy),
			components.BarChart(vals, labels, t.Green, components.CardInnerWidth(cw), chartH),
			cw,
		))
		b.WriteString("\n")
	}

	// Row 3: period flows beside participation and open proposals
	halves := components.LayoutRow(cw, 2)
	flows := a.renderFlows(components.CardInnerWidth(halves[0]))
	health := a.renderHealth(components.CardInnerWidth(halves[1]))
	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Money In / Out", flows, cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Group Health", health, cw))
	} else {
		b.WriteString(components.CardRow([]string{
			components.ContentCard("Money In / Out", flows, halves[0]),
			components.ContentCard("Group Health", health, halves[1]),
		}))
	}

	return b.String()
}

func (a App) renderFlows(w int) string {
	t := theme.Active
	cur := a.cmp.Current
	ccy := a.currency()

	lines := []struct {
		label  string
		amount decimal.Decimal
		inflow bool
	}{
		{"Contributions", cur.Contributions, true},
		{"Loan repayments", cur.LoanRepayments, true},
		{"Fines paid", cur.FinesPaid, true},
		{"Loans issued", cur.LoansIssued, false},
		{"Withdrawals", cur.Withdrawals, false},
		{"Expenses", cur.Expenses, false},
	}

	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	rows := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		amt := cli.FormatMoney(l.amount, ccy)
		val := lipgloss.NewStyle().Foreground(t.Money(l.inflow)).Background(t.Surface).Render(amt)
		pad := max(w-lipgloss.Width(l.label)-lipgloss.Width(amt), 1)
		rows = append(rows, label.Render(l.label+strings.Repeat(" ", pad))+val)
	}
	return strings.Join(rows, "\n")
}

func (a App) renderHealth(w int) string {
	t := theme.Active
	cur := a.cmp.Current
	ccy := a.currency()
	labelW := 16
	barW := max(w-labelW-6, 8)

	var b strings.Builder
	b.WriteString(components.RateBar("Contributed", cur.ContributionRate, labelW, barW))
	b.WriteString("\n")

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	b.WriteString(muted.Render(fmt.Sprintf("%d of %d active members contributed in the last %d days",
		cur.ContributingMembers, cur.ActiveMembers, a.days)))
	b.WriteString("\n")

	if cur.UnpaidFineCount > 0 {
		b.WriteString(warn.Render(fmt.Sprintf("%s unpaid (%s)",
			cli.FormatCount(cur.UnpaidFineCount, "fine", "fines"),
			cli.FormatMoney(cur.UnpaidFines, ccy))))
	} else {
		b.WriteString(muted.Render("No unpaid fines"))
	}
	b.WriteString("\n")

	if n := len(a.pending); n > 0 {
		b.WriteString(warn.Render(cli.FormatCount(n, "proposal awaits", "proposals await") + " a vote"))
		for i, c := range a.pending {
			if i == 3 {
				b.WriteString("\n" + muted.Render(fmt.Sprintf("  … and %d more", n-3)))
				break
			}
			b.WriteString("\n" + muted.Render(truncStr("  • "+c.Kind.Label(), w)))
		}
	} else {
		b.WriteString(muted.Render("No proposals pending"))
	}
	return b.String()
}
