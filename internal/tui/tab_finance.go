package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

const financeRows = 12

func (a App) renderFinanceTab(cw int) string {
	var b strings.Builder
	b.WriteString(a.renderTransactions(cw))
	b.WriteString("\n")

	if a.isCompactLayout() {
		b.WriteString(a.renderLoans(cw))
		b.WriteString("\n")
		b.WriteString(a.renderFines(cw))
		b.WriteString("\n")
		b.WriteString(a.renderExpenses(cw))
		return b.String()
	}

	halves := components.LayoutRow(cw, 2)
	b.WriteString(a.renderLoans(cw))
	b.WriteString("\n")
	b.WriteString(components.CardRow([]string{a.renderFines(halves[0]), a.renderExpenses(halves[1])}))
	return b.String()
}

func (a App) renderTransactions(w int) string {
	t := theme.Active
	ccy := a.currency()

	txs := append([]model.Transaction(nil), a.data.Transactions...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })

	title := fmt.Sprintf("Recent Transactions (%d total)", len(txs))
	if len(txs) == 0 {
		return components.ContentCard(title, emptyState("No transactions recorded"), w)
	}
	if len(txs) > financeRows {
		txs = txs[:financeRows]
	}

	cols := []column{
		{title: "Date", width: 11},
		{title: "Member", width: 20},
		{title: "Type", width: 18},
		{title: "Description"},
		{title: "Amount", width: 18, right: true},
	}
	rows := make([][]cell, len(txs))
	for i, tx := range txs {
		amt := cli.FormatMoney(tx.Amount, ccy)
		if !tx.Type.Inflow() {
			amt = "-" + amt
		}
		desc := tx.Description
		if desc == "" {
			desc = tx.Reference
		}
		rows[i] = []cell{
			{text: cli.FormatDate(tx.CreatedAt), color: t.TextDim},
			plain(tx.MemberName),
			{text: strings.ReplaceAll(string(tx.Type), "_", " "), color: t.TextMuted},
			plain(desc),
			{text: amt, color: t.Money(tx.Type.Inflow())},
		}
	}
	return components.ContentCard(title, renderRows(cols, rows, components.CardInnerWidth(w), -1), w)
}

func (a App) renderLoans(w int) string {
	t := theme.Active
	ccy := a.currency()
	now := time.Now()

	loans := append([]model.Loan(nil), a.data.Loans...)
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].Outstanding().GreaterThan(loans[j].Outstanding())
	})

	title := fmt.Sprintf("Loans (%d)", len(loans))
	if len(loans) == 0 {
		return components.ContentCard(title, emptyState("No loans issued"), w)
	}
	if len(loans) > financeRows {
		loans = loans[:financeRows]
	}

	cols := []column{
		{title: "Member"},
		{title: "Principal", width: 16, right: true},
		{title: "Rate", width: 6, right: true},
		{title: "Outstanding", width: 16, right: true},
		{title: "Due", width: 11, right: true},
		{title: "Status", width: 10},
	}
	rows := make([][]cell, len(loans))
	for i, l := range loans {
		status := string(l.Status)
		if l.Overdue(now) {
			status = "overdue"
		}
		due := "-"
		if l.DueDate != nil {
			due = cli.FormatDate(*l.DueDate)
		}
		rows[i] = []cell{
			plain(l.MemberName),
			plain(cli.FormatMoney(l.Principal, ccy)),
			{text: l.InterestRate.String() + "%", color: t.TextMuted},
			{text: cli.FormatMoney(l.Outstanding(), ccy), color: t.Orange},
			{text: due, color: t.TextDim},
			{text: status, color: t.Status(status)},
		}
	}
	return components.ContentCard(title, renderRows(cols, rows, components.CardInnerWidth(w), -1), w)
}

func (a App) renderFines(w int) string {
	t := theme.Active
	ccy := a.currency()

	fines := append([]model.Fine(nil), a.data.Fines...)
	sort.SliceStable(fines, func(i, j int) bool {
		if fines[i].Paid != fines[j].Paid {
			return !fines[i].Paid
		}
		return fines[i].CreatedAt.After(fines[j].CreatedAt)
	})

	title := fmt.Sprintf("Fines (%d)", len(fines))
	if len(fines) == 0 {
		return components.ContentCard(title, emptyState("No fines levied"), w)
	}
	if len(fines) > financeRows {
		fines = fines[:financeRows]
	}

	cols := []column{
		{title: "Member", width: 16},
		{title: "Reason"},
		{title: "Amount", width: 14, right: true},
		{title: "", width: 6},
	}
	rows := make([][]cell, len(fines))
	for i, f := range fines {
		state, color := "unpaid", t.Red
		if f.Paid {
			state, color = "paid", t.Green
		}
		rows[i] = []cell{
			plain(f.MemberName),
			{text: f.Reason, color: t.TextMuted},
			plain(cli.FormatMoney(f.Amount, ccy)),
			{text: state, color: color},
		}
	}
	return components.ContentCard(title, renderRows(cols, rows, components.CardInnerWidth(w), -1), w)
}

func (a App) renderExpenses(w int) string {
	t := theme.Active
	ccy := a.currency()

	expenses := append([]model.Expense(nil), a.data.Expenses...)
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].CreatedAt.After(expenses[j].CreatedAt) })

	title := fmt.Sprintf("Expenses (%d)", len(expenses))
	if len(expenses) == 0 {
		return components.ContentCard(title, emptyState("No expenses recorded"), w)
	}
	if len(expenses) > financeRows {
		expenses = expenses[:financeRows]
	}

	cols := []column{
		{title: "Date", width: 11},
		{title: "Description"},
		{title: "Amount", width: 14, right: true},
	}
	rows := make([][]cell, len(expenses))
	for i, e := range expenses {
		desc := e.Description
		if e.Category != "" {
			desc = e.Category + ": " + desc
		}
		rows[i] = []cell{
			{text: cli.FormatDate(e.CreatedAt), color: t.TextDim},
			plain(desc),
			{text: cli.FormatMoney(e.Amount, ccy), color: t.Red},
		}
	}
	return components.ContentCard(title, renderRows(cols, rows, components.CardInnerWidth(w), -1), w)
}
