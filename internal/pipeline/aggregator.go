// Package pipeline loads a group's data from the backend and aggregates it
// into the figures the summary and dashboard show.
package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bl4ckh401/chama/internal/model"
)

// Summarize computes summary statistics for transactions and expenses in
// [since, until). Loan and fine positions are as of now.
func Summarize(data *Dataset, since, until, now time.Time) model.SummaryStats {
	var stats model.SummaryStats
	contributors := make(map[string]struct{})

	var inflow, outflow decimal.Decimal
	for _, tx := range FilterByTime(data.Transactions, since, until) {
		stats.Transactions++
		switch tx.Type {
		case model.TxContribution:
			stats.Contributions = stats.Contributions.Add(tx.Amount)
			if tx.MemberID != "" {
				contributors[tx.MemberID] = struct{}{}
			}
		case model.TxWithdrawal:
			stats.Withdrawals = stats.Withdrawals.Add(tx.Amount)
		case model.TxLoanDisburse:
			stats.LoansIssued = stats.LoansIssued.Add(tx.Amount)
		case model.TxLoanRepay:
			stats.LoanRepayments = stats.LoanRepayments.Add(tx.Amount)
		case model.TxFinePayment:
			stats.FinesPaid = stats.FinesPaid.Add(tx.Amount)
		}
		if tx.Type.Inflow() {
			inflow = inflow.Add(tx.Amount)
		} else {
			outflow = outflow.Add(tx.Amount)
		}
	}
	stats.NetFlow = inflow.Sub(outflow)

	for _, e := range data.Expenses {
		if inWindow(e.CreatedAt, since, until) {
			stats.Expenses = stats.Expenses.Add(e.Amount)
		}
	}

	for _, m := range data.Members {
		if m.IsActive() {
			stats.ActiveMembers++
		}
	}
	stats.ContributingMembers = len(contributors)
	if stats.ActiveMembers > 0 {
		stats.ContributionRate = float64(stats.ContributingMembers) / float64(stats.ActiveMembers)
	}

	for _, l := range data.Loans {
		if !openLoan(l) {
			continue
		}
		stats.OpenLoans++
		stats.LoansOutstanding = stats.LoansOutstanding.Add(l.Outstanding())
		if l.Overdue(now) {
			stats.OverdueLoans++
		}
	}

	for _, f := range data.Fines {
		if !f.Paid {
			stats.UnpaidFineCount++
			stats.UnpaidFines = stats.UnpaidFines.Add(f.Amount)
		}
	}

	return stats
}

// Compare summarizes the last days days against the window before it.
func Compare(data *Dataset, days int, now time.Time) model.PeriodComparison {
	span := time.Duration(days) * 24 * time.Hour
	return model.PeriodComparison{
		Current:  Summarize(data, now.Add(-span), now, now),
		Previous: Summarize(data, now.Add(-2*span), now.Add(-span), now),
	}
}

// MonthlyContributions buckets money movement by calendar month, oldest
// first. Every month in [since, until] is present so charts show gaps as zero.
func MonthlyContributions(txs []model.Transaction, since, until time.Time) []model.MonthlyStats {
	monthMap := make(map[time.Time]*model.MonthlyStats)

	for _, tx := range FilterByTime(txs, since, until) {
		key := monthStart(tx.CreatedAt)
		ms, ok := monthMap[key]
		if !ok {
			ms = &model.MonthlyStats{Month: key}
			monthMap[key] = ms
		}
		ms.Transactions++
		switch {
		case tx.Type == model.TxContribution:
			ms.Contributions = ms.Contributions.Add(tx.Amount)
		case tx.Type == model.TxLoanRepay:
			ms.Repayments = ms.Repayments.Add(tx.Amount)
		case !tx.Type.Inflow():
			ms.Outflows = ms.Outflows.Add(tx.Amount)
		}
	}

	if !since.IsZero() && !until.IsZero() {
		end := monthStart(until)
		for m := monthStart(since); !m.After(end); m = m.AddDate(0, 1, 0) {
			if _, ok := monthMap[m]; !ok {
				monthMap[m] = &model.MonthlyStats{Month: m}
			}
		}
	}

	months := make([]model.MonthlyStats, 0, len(monthMap))
	for _, ms := range monthMap {
		months = append(months, *ms)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month.Before(months[j].Month)
	})
	return months
}

// MemberStandings computes each member's position, largest contributor first.
func MemberStandings(data *Dataset) []model.MemberStats {
	byID := make(map[string]*model.MemberStats, len(data.Members))
	order := make([]*model.MemberStats, 0, len(data.Members))
	for _, m := range data.Members {
		ms := &model.MemberStats{Member: m}
		byID[m.ID] = ms
		order = append(order, ms)
	}

	fromLedger := make(map[string]bool)
	for _, tx := range data.Transactions {
		ms, ok := byID[tx.MemberID]
		if !ok {
			continue
		}
		if tx.Type == model.TxContribution {
			ms.Contributed = ms.Contributed.Add(tx.Amount)
			fromLedger[tx.MemberID] = true
		}
		if tx.CreatedAt.After(ms.LastActivity) {
			ms.LastActivity = tx.CreatedAt
		}
	}
	for id, ms := range byID {
		if !fromLedger[id] {
			ms.Contributed = ms.Member.TotalContributions
		}
	}

	for _, l := range data.Loans {
		if ms, ok := byID[l.MemberID]; ok && openLoan(l) {
			ms.LoanBalance = ms.LoanBalance.Add(l.Outstanding())
		}
	}
	for _, f := range data.Fines {
		if ms, ok := byID[f.MemberID]; ok && !f.Paid {
			ms.UnpaidFines = ms.UnpaidFines.Add(f.Amount)
		}
	}

	total := decimal.Zero
	for _, ms := range order {
		total = total.Add(ms.Contributed)
	}

	out := make([]model.MemberStats, 0, len(order))
	for _, ms := range order {
		if total.IsPositive() {
			ms.SharePercent = ms.Contributed.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, *ms)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Contributed.GreaterThan(out[j].Contributed)
	})
	return out
}

// PendingChanges returns proposals still open for voting, oldest first.
func PendingChanges(changes []model.SettingsChange) []model.SettingsChange {
	var out []model.SettingsChange
	for _, c := range changes {
		if c.Status == model.ChangePending {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FilterByTime returns transactions created within [since, until). Zero
// bounds are open.
func FilterByTime(txs []model.Transaction, since, until time.Time) []model.Transaction {
	if since.IsZero() && until.IsZero() {
		return txs
	}

	var result []model.Transaction
	for _, tx := range txs {
		if inWindow(tx.CreatedAt, since, until) {
			result = append(result, tx)
		}
	}
	return result
}

// FilterByType returns transactions of the given types.
func FilterByType(txs []model.Transaction, types ...model.TransactionType) []model.Transaction {
	if len(types) == 0 {
		return txs
	}
	var result []model.Transaction
	for _, tx := range txs {
		for _, t := range types {
			if tx.Type == t {
				result = append(result, tx)
				break
			}
		}
	}
	return result
}

func inWindow(t, since, until time.Time) bool {
	if since.IsZero() && until.IsZero() {
		return true
	}
	if t.IsZero() {
		return false
	}
	if !since.IsZero() && t.Before(since) {
		return false
	}
	if !until.IsZero() && !t.Before(until) {
		return false
	}
	return true
}

func openLoan(l model.Loan) bool {
	return l.Status == model.LoanActive || l.Status == model.LoanApproved
}

func monthStart(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
}
