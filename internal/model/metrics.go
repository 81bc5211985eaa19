package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryStats holds the top-level financial aggregate for a period.
type SummaryStats struct {
	Contributions  decimal.Decimal
	Withdrawals    decimal.Decimal
	LoansIssued    decimal.Decimal
	LoanRepayments decimal.Decimal
	FinesPaid      decimal.Decimal
	Expenses       decimal.Decimal
	NetFlow        decimal.Decimal

	Transactions        int
	ContributingMembers int
	ActiveMembers       int

	LoansOutstanding decimal.Decimal
	OpenLoans        int
	OverdueLoans     int
	UnpaidFines      decimal.Decimal
	UnpaidFineCount  int

	// ContributionRate is contributing members over active members (0-1).
	ContributionRate float64
}

// MonthlyStats holds money movement for one calendar month.
type MonthlyStats struct {
	Month         time.Time
	Contributions decimal.Decimal
	Repayments    decimal.Decimal
	Outflows      decimal.Decimal
	Transactions  int
}

// MemberStats holds per-member standing for the members tab.
type MemberStats struct {
	Member       Member
	Contributed  decimal.Decimal
	LoanBalance  decimal.Decimal
	UnpaidFines  decimal.Decimal
	LastActivity time.Time
	SharePercent float64
}

// PeriodComparison holds current and previous period data for delta computation.
type PeriodComparison struct {
	Current  SummaryStats
	Previous SummaryStats
}
