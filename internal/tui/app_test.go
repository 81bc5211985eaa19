package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/pipeline"
	"github.com/bl4ckh401/chama/internal/upstream"
)

// fakeBackend serves a fixed group and records writes.
type fakeBackend struct {
	mu    sync.Mutex
	data  pipeline.Dataset
	votes []model.VoteRequest
	docs  []model.Document
	err   error
}

func (f *fakeBackend) Chama(context.Context, string) (*model.ChamaData, error) {
	c := f.data.Chama
	return &c, nil
}
func (f *fakeBackend) Members(context.Context, string) ([]model.Member, error) {
	return f.data.Members, nil
}
func (f *fakeBackend) Transactions(context.Context, string) ([]model.Transaction, error) {
	return f.data.Transactions, nil
}
func (f *fakeBackend) Loans(context.Context, string) ([]model.Loan, error) { return f.data.Loans, nil }
func (f *fakeBackend) Expenses(context.Context, string) ([]model.Expense, error) {
	return f.data.Expenses, nil
}
func (f *fakeBackend) Fines(context.Context, string) ([]model.Fine, error) { return f.data.Fines, nil }
func (f *fakeBackend) SettingsChanges(context.Context, string) ([]model.SettingsChange, error) {
	return f.data.Changes, nil
}
func (f *fakeBackend) Documents(context.Context, string) ([]model.Document, error) {
	return f.data.Documents, nil
}
func (f *fakeBackend) Policies(context.Context, string) ([]model.Policy, error) {
	return f.data.Policies, nil
}

func (f *fakeBackend) VoteSettingsChange(_ context.Context, _, _ string, vote model.VoteRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, vote)
	return f.err
}
func (f *fakeBackend) CreateDocument(_ context.Context, doc model.Document) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return &doc, f.err
}
func (f *fakeBackend) DeleteDocument(context.Context, string, string) error { return f.err }
func (f *fakeBackend) CreatePolicy(_ context.Context, p model.Policy) (*model.Policy, error) {
	return &p, f.err
}
func (f *fakeBackend) DeletePolicy(context.Context, string, string) error         { return f.err }
func (f *fakeBackend) RequestClosure(context.Context, model.ClosureRequest) error { return f.err }

func fixture() pipeline.Dataset {
	now := time.Now()
	return pipeline.Dataset{
		Chama: model.ChamaData{ID: "c1", Name: "Umoja Savers", Currency: "KES", Balance: decimal.NewFromInt(48200)},
		Members: []model.Member{
			{ID: "m1", UserID: "u1", Name: "Amina Njeri", Role: model.RoleChair},
			{ID: "m2", UserID: "u2", Name: "Otieno Ouma", Role: model.RoleMember},
		},
		Transactions: []model.Transaction{
			{ID: "t1", MemberID: "m1", MemberName: "Amina Njeri", Type: model.TxContribution, Amount: decimal.NewFromInt(2000), CreatedAt: now.AddDate(0, 0, -3)},
			{ID: "t2", MemberID: "m2", MemberName: "Otieno Ouma", Type: model.TxContribution, Amount: decimal.NewFromInt(1500), CreatedAt: now.AddDate(0, 0, -2)},
		},
		Loans: []model.Loan{
			{ID: "l1", MemberID: "m2", MemberName: "Otieno Ouma", Principal: decimal.NewFromInt(5000), InterestRate: decimal.NewFromInt(10), Status: model.LoanActive},
		},
		Fines: []model.Fine{
			{ID: "f1", MemberID: "m2", MemberName: "Otieno Ouma", Reason: "Late to meeting", Amount: decimal.NewFromInt(200)},
		},
		Changes: []model.SettingsChange{
			{
				ID:      "sc1",
				Kind:    model.ChangeLoanInterestRate,
				Status:  model.ChangePending,
				Payload: model.RateChange{Previous: decimal.NewFromInt(10), Proposed: decimal.NewFromInt(12)},
			},
		},
		Documents: []model.Document{
			{ID: "d1", Title: "Constitution 2024", Kind: model.DocConstitution, URL: "https://files.example.com/c.pdf"},
		},
		Policies: []model.Policy{
			{ID: "p1", Title: "Loan policy", Body: "Loans are capped at three times savings."},
		},
	}
}

func loadedApp(t *testing.T, user model.User, backend *fakeBackend) App {
	t.Helper()
	a := NewApp(backend, user, Options{Days: 30})
	res, err := pipeline.Load(context.Background(), backend, user.ChamaID, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, _ := a.Update(tea.WindowSizeMsg{Width: 140, Height: 60})
	m, _ = m.Update(DataLoadedMsg{Result: res, LoadTime: time.Millisecond})
	return m.(App)
}

func press(t *testing.T, a App, keys ...string) App {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ := a.Update(msg)
		a = m.(App)
	}
	return a
}

var chair = model.User{ID: "u1", Name: "Amina Njeri", Role: model.RoleChair, ChamaID: "c1"}

func TestAppRendersEveryTab(t *testing.T) {
	a := loadedApp(t, chair, &fakeBackend{data: fixture()})

	cases := []struct {
		key  string
		want []string
	}{
		{"o", []string{"Balance", "KES 48,200.00", "Monthly Contributions"}},
		{"m", []string{"Members (2)", "Amina Njeri", "Share of Contributions"}},
		{"f", []string{"Recent Transactions", "Loans (1)", "Late to meeting"}},
		{"g", []string{"Proposals (1 pending of 1)", "Loan interest rate", "Press enter to vote"}},
		{"d", []string{"Constitution 2024", "Loan policy", "add document"}},
	}
	for _, tc := range cases {
		a = press(t, a, tc.key)
		view := a.View()
		for _, want := range tc.want {
			if !strings.Contains(view, want) {
				t.Errorf("tab %q: view missing %q", tc.key, want)
			}
		}
	}
}

func TestAppLoadErrorShowsMessage(t *testing.T) {
	a := NewApp(&fakeBackend{}, chair, Options{})
	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(DataLoadedMsg{Err: &upstream.Error{StatusCode: 502, Message: "Backend unavailable"}})
	view := m.View()
	if !strings.Contains(view, "Backend unavailable") {
		t.Errorf("load error view missing message:\n%s", view)
	}
}

func TestAppTabCycling(t *testing.T) {
	a := loadedApp(t, chair, &fakeBackend{data: fixture()})
	a = press(t, a, "right", "right")
	if a.activeTab != tabFinance {
		t.Errorf("activeTab = %d, want %d", a.activeTab, tabFinance)
	}
	a = press(t, a, "d", "right")
	if a.activeTab != tabOverview {
		t.Errorf("activeTab after wrap = %d, want 0", a.activeTab)
	}
}

func TestVoteFormFailedSubmitStaysOpen(t *testing.T) {
	backend := &fakeBackend{data: fixture()}
	a := press(t, loadedApp(t, chair, backend), "g", "enter")
	if a.form == nil || a.formKind != formVote {
		t.Fatalf("vote form not open (kind %d)", a.formKind)
	}

	// Rejecting without a reason fails before anything is sent.
	a.vals.Approve = false
	m, _ := a.submit()
	a = m.(App)
	if a.form == nil {
		t.Fatal("form closed after a local validation error")
	}
	if !strings.Contains(a.formErr, "reason") {
		t.Errorf("formErr = %q", a.formErr)
	}

	// A backend rejection keeps the form open with its message.
	m, _ = a.Update(submitResultMsg{kind: formVote, err: &upstream.Error{StatusCode: 409, Message: "Voting has closed"}})
	a = m.(App)
	if a.form == nil || a.formErr != "Voting has closed" {
		t.Fatalf("form = %v, formErr = %q", a.form != nil, a.formErr)
	}
	if !strings.Contains(a.View(), "Voting has closed") {
		t.Error("error not shown in the open form")
	}
	if a.vals.ChangeID != "sc1" {
		t.Errorf("form values lost: %+v", a.vals)
	}
}

func TestVoteFormSubmitsAndCloses(t *testing.T) {
	backend := &fakeBackend{data: fixture()}
	a := press(t, loadedApp(t, chair, backend), "g", "enter")

	a.vals.Approve = true
	m, cmd := a.submit()
	a = m.(App)
	if !a.submitting {
		t.Fatal("expected submitting state")
	}

	var result tea.Msg
	for _, c := range cmd().(tea.BatchMsg) {
		if msg := c(); msg != nil {
			if r, ok := msg.(submitResultMsg); ok {
				result = r
			}
		}
	}
	if result == nil {
		t.Fatal("submit command produced no result")
	}
	if len(backend.votes) != 1 || !backend.votes[0].Approve {
		t.Fatalf("votes = %+v", backend.votes)
	}

	m, refresh := a.Update(result)
	a = m.(App)
	if a.form != nil || a.submitting {
		t.Error("form should close after a successful submit")
	}
	if a.notice != "Vote recorded" || !a.refreshing || refresh == nil {
		t.Errorf("notice = %q refreshing = %v", a.notice, a.refreshing)
	}
}

func TestVoteBlockedWhenAlreadyVoted(t *testing.T) {
	data := fixture()
	data.Changes[0].Approvals = []model.Vote{{UserID: "u1"}}
	a := press(t, loadedApp(t, chair, &fakeBackend{data: data}), "g", "enter")
	if a.form != nil {
		t.Fatal("vote form opened for a user who already voted")
	}
	if !strings.Contains(a.notice, "already voted") {
		t.Errorf("notice = %q", a.notice)
	}
}

func TestDocumentFormsRequireOfficials(t *testing.T) {
	member := model.User{ID: "u2", Name: "Otieno Ouma", Role: model.RoleMember, ChamaID: "c1"}
	a := press(t, loadedApp(t, member, &fakeBackend{data: fixture()}), "d", "n")
	if a.form != nil {
		t.Fatal("member opened the document form")
	}
	a = press(t, a, "c")
	if a.form != nil {
		t.Fatal("member opened the closure form")
	}

	a = press(t, loadedApp(t, chair, &fakeBackend{data: fixture()}), "d", "n")
	if a.form == nil || a.formKind != formDocument {
		t.Fatal("chair could not open the document form")
	}
	a = press(t, a, "esc")
	if a.form != nil {
		t.Error("esc should close the form")
	}
}

func TestDocumentFormValidatesLink(t *testing.T) {
	backend := &fakeBackend{data: fixture()}
	a := press(t, loadedApp(t, chair, backend), "d", "n")
	a.vals.Title = "March minutes"
	a.vals.URL = "not a link"

	m, _ := a.submit()
	a = m.(App)
	if a.form == nil || a.formErr == "" {
		t.Fatal("invalid link should keep the form open with an error")
	}
	if len(backend.docs) != 0 {
		t.Error("invalid document reached the backend")
	}
}

func TestNoticeTriggersRefresh(t *testing.T) {
	ch := make(chan model.Notification)
	backend := &fakeBackend{data: fixture()}
	a := loadedApp(t, chair, backend)
	a.notices = ch

	m, cmd := a.Update(NoticeMsg{Notification: model.Notification{Type: model.NotifyPayment, Message: "KES 500 received"}})
	a = m.(App)
	if !strings.Contains(a.notice, "KES 500 received") {
		t.Errorf("notice = %q", a.notice)
	}
	if !a.refreshing || cmd == nil {
		t.Error("payment notification should refresh data")
	}
}
