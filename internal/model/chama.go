package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChamaData is the group header shown on the dashboard.
type ChamaData struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description,omitempty"`
	Currency              string          `json:"currency,omitempty"`
	Balance               decimal.Decimal `json:"balance"`
	ContributionAmount    decimal.Decimal `json:"contributionAmount"`
	ContributionPeriod    string          `json:"contributionFrequency,omitempty"`
	LoanInterestRate      decimal.Decimal `json:"loanInterestRate"`
	MemberCount           int             `json:"memberCount,omitempty"`
	Status                string          `json:"status,omitempty"`
	CreatedAt             time.Time       `json:"createdAt,omitempty"`
	NextMeeting           *time.Time      `json:"nextMeeting,omitempty"`
	TotalContributions    decimal.Decimal `json:"totalContributions"`
	TotalLoansOutstanding decimal.Decimal `json:"totalLoansOutstanding"`
}

// CurrencyOrDefault returns the group's currency code, KES when unset.
func (c ChamaData) CurrencyOrDefault() string {
	if c.Currency == "" {
		return "KES"
	}
	return c.Currency
}

// Member is one person in the group.
type Member struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId,omitempty"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone,omitempty"`
	Email              string          `json:"email,omitempty"`
	Role               Role            `json:"role,omitempty"`
	JoinedAt           time.Time       `json:"joinedAt,omitempty"`
	TotalContributions decimal.Decimal `json:"totalContributions"`
	OutstandingLoans   decimal.Decimal `json:"outstandingLoans"`
	OutstandingFines   decimal.Decimal `json:"outstandingFines"`
	Active             *bool           `json:"active,omitempty"`
}

// IsActive treats a missing flag as active.
func (m Member) IsActive() bool { return m.Active == nil || *m.Active }

// TransactionType classifies money movements.
type TransactionType string

// Transaction types reported by the backend.
const (
	TxContribution TransactionType = "contribution"
	TxWithdrawal   TransactionType = "withdrawal"
	TxLoanDisburse TransactionType = "loan_disbursement"
	TxLoanRepay    TransactionType = "loan_repayment"
	TxFinePayment  TransactionType = "fine_payment"
	TxExpense      TransactionType = "expense"
)

// Inflow reports whether the transaction adds money to the group account.
func (t TransactionType) Inflow() bool {
	switch t {
	case TxContribution, TxLoanRepay, TxFinePayment:
		return true
	}
	return false
}

// Transaction is a single ledger movement.
type Transaction struct {
	ID          string          `json:"id"`
	ChamaID     string          `json:"chamaId,omitempty"`
	MemberID    string          `json:"memberId,omitempty"`
	MemberName  string          `json:"memberName,omitempty"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// LoanStatus is the lifecycle stage of a loan.
type LoanStatus string

// Loan statuses.
const (
	LoanPending   LoanStatus = "pending"
	LoanApproved  LoanStatus = "approved"
	LoanActive    LoanStatus = "active"
	LoanRepaid    LoanStatus = "repaid"
	LoanDefaulted LoanStatus = "defaulted"
	LoanRejected  LoanStatus = "rejected"
)

// Loan is money lent to a member.
type Loan struct {
	ID           string          `json:"id"`
	MemberID     string          `json:"memberId"`
	MemberName   string          `json:"memberName,omitempty"`
	Principal    decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interestRate"`
	AmountRepaid decimal.Decimal `json:"amountRepaid"`
	Status       LoanStatus      `json:"status"`
	DueDate      *time.Time      `json:"dueDate,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// TotalDue is principal plus flat interest.
func (l Loan) TotalDue() decimal.Decimal {
	interest := l.Principal.Mul(l.InterestRate).Div(decimal.NewFromInt(100))
	return l.Principal.Add(interest)
}

// Outstanding is what remains to be repaid, never negative.
func (l Loan) Outstanding() decimal.Decimal {
	rest := l.TotalDue().Sub(l.AmountRepaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Overdue reports whether an open loan is past its due date at now.
func (l Loan) Overdue(now time.Time) bool {
	if l.DueDate == nil || (l.Status != LoanActive && l.Status != LoanApproved) {
		return false
	}
	return now.After(*l.DueDate) && l.Outstanding().IsPositive()
}

// Expense is money spent by the group.
type Expense struct {
	ID          string          `json:"id"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ApprovedBy  string          `json:"approvedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Fine is a penalty levied on a member.
type Fine struct {
	ID         string          `json:"id"`
	MemberID   string          `json:"memberId"`
	MemberName string          `json:"memberName,omitempty"`
	Reason     string          `json:"reason"`
	Amount     decimal.Decimal `json:"amount"`
	Paid       bool            `json:"paid"`
	CreatedAt  time.Time       `json:"createdAt"`
}
