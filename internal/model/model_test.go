package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoanOutstanding(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	l := Loan{
		Principal:    decimal.NewFromInt(10000),
		InterestRate: decimal.NewFromInt(10),
		AmountRepaid: decimal.NewFromInt(4000),
		Status:       LoanActive,
		DueDate:      &due,
	}

	if got := l.TotalDue().String(); got != "11000" {
		t.Errorf("TotalDue = %s, want 11000", got)
	}
	if got := l.Outstanding().String(); got != "7000" {
		t.Errorf("Outstanding = %s, want 7000", got)
	}
	if !l.Overdue(due.Add(time.Hour)) {
		t.Error("expected loan to be overdue after due date")
	}
	if l.Overdue(due.Add(-time.Hour)) {
		t.Error("loan overdue before due date")
	}

	l.AmountRepaid = decimal.NewFromInt(12000)
	if !l.Outstanding().IsZero() {
		t.Errorf("overpaid Outstanding = %s, want 0", l.Outstanding())
	}
}

func TestRolePredicates(t *testing.T) {
	admin := User{Role: "Admin", ChamaID: "c1"}
	if !admin.IsAdmin() || !admin.CanManageDocuments() || !admin.CanRequestClosure() {
		t.Error("admin predicates should all hold (role match is case-insensitive)")
	}

	treasurer := User{Role: RoleTreasurer, ChamaID: "c1"}
	if !treasurer.IsTreasurer() || !treasurer.IsOfficial() {
		t.Error("treasurer should be an official")
	}
	if treasurer.CanManageDocuments() {
		t.Error("treasurer should not manage documents")
	}

	outsider := User{Role: RoleMember}
	if outsider.CanApproveChanges() {
		t.Error("user without a chama cannot vote")
	}
}

func TestDocumentValidate(t *testing.T) {
	ok := Document{Title: "Constitution", Kind: DocConstitution, URL: "https://files.example.com/c.pdf"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid document: %v", err)
	}

	bad := []Document{
		{Title: "", Kind: DocMinutes, URL: "https://x.example/a"},
		{Title: "t", Kind: "memo", URL: "https://x.example/a"},
		{Title: "t", Kind: DocOther, URL: "ftp://x.example/a"},
		{Title: "t", Kind: DocOther, URL: "not a url"},
	}
	for i, d := range bad {
		if err := d.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestClosureRequestValidate(t *testing.T) {
	if err := (ClosureRequest{Reason: "members relocating abroad", Distribution: DistributeProportional}).Validate(); err != nil {
		t.Errorf("valid closure: %v", err)
	}
	if err := (ClosureRequest{Reason: "members relocating abroad", Distribution: "lottery"}).Validate(); err == nil {
		t.Error("unknown distribution validated")
	}
}

func TestParseNotificationType(t *testing.T) {
	if got := ParseNotificationType("payment"); got != NotifyPayment {
		t.Errorf("payment -> %s", got)
	}
	if got := ParseNotificationType("promo"); got != NotifyOther {
		t.Errorf("unknown -> %s, want other", got)
	}
}
