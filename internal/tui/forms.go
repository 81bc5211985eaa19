package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/tui/components"
)

const submitTimeout = 15 * time.Second

type formKind int

const (
	formNone formKind = iota
	formVote
	formDocument
	formPolicy
	formDelete
	formClosure
)

func (k formKind) title() string {
	switch k {
	case formVote:
		return "Vote on proposal"
	case formDocument:
		return "Add document"
	case formPolicy:
		return "Add policy"
	case formDelete:
		return "Delete"
	case formClosure:
		return "Request group closure"
	}
	return ""
}

// formValues backs every modal. It lives behind a pointer so huh's field
// bindings survive the App being copied between updates.
type formValues struct {
	// vote
	ChangeID string
	Summary  string
	Approve  bool
	Reason   string

	// document / policy
	Title    string
	Kind     model.DocumentKind
	URL      string
	Category string
	Body     string

	// delete
	TargetID     string
	TargetTitle  string
	TargetPolicy bool

	// closure
	Distribution model.Distribution

	Confirm bool
}

type submitResultMsg struct {
	kind   formKind
	notice string
	err    error
}

func (a App) openForm(kind formKind) (tea.Model, tea.Cmd) {
	a.formKind = kind
	a.formErr = ""
	a.form = a.buildForm()
	return a, a.form.Init()
}

func (a App) openVoteForm() (tea.Model, tea.Cmd) {
	if len(a.data.Changes) == 0 {
		return a, nil
	}
	c := a.data.Changes[a.govCursor]
	switch {
	case c.Status != model.ChangePending:
		a.notice = "Voting on this proposal has closed"
		return a, nil
	case !a.user.CanApproveChanges():
		a.notice = "Only group members can vote"
		return a, nil
	case c.HasVoted(a.user.ID):
		a.notice = "You have already voted on this proposal"
		return a, nil
	}
	summary := c.Kind.Label()
	if c.Payload != nil {
		summary += ": " + c.Payload.Summary()
	}
	*a.vals = formValues{ChangeID: c.ID, Summary: summary, Approve: true}
	return a.openForm(formVote)
}

func (a App) openDocumentForm() (tea.Model, tea.Cmd) {
	if !a.user.CanManageDocuments() {
		a.notice = "Only the chair, secretary or admin can add documents"
		return a, nil
	}
	*a.vals = formValues{Kind: model.DocMinutes}
	return a.openForm(formDocument)
}

func (a App) openPolicyForm() (tea.Model, tea.Cmd) {
	if !a.user.CanManageDocuments() {
		a.notice = "Only the chair, secretary or admin can add policies"
		return a, nil
	}
	*a.vals = formValues{}
	return a.openForm(formPolicy)
}

func (a App) openDeleteForm() (tea.Model, tea.Cmd) {
	if !a.user.CanManageDocuments() {
		a.notice = "Only the chair, secretary or admin can delete records"
		return a, nil
	}
	docs := a.data.Documents
	switch i := a.docCursor; {
	case i < len(docs):
		*a.vals = formValues{TargetID: docs[i].ID, TargetTitle: docs[i].Title}
	case i-len(docs) < len(a.data.Policies):
		p := a.data.Policies[i-len(docs)]
		*a.vals = formValues{TargetID: p.ID, TargetTitle: p.Title, TargetPolicy: true}
	default:
		return a, nil
	}
	return a.openForm(formDelete)
}

func (a App) openClosureForm() (tea.Model, tea.Cmd) {
	if !a.user.CanRequestClosure() {
		a.notice = "Only the chair or admin can request closure"
		return a, nil
	}
	*a.vals = formValues{Distribution: model.DistributeProportional}
	return a.openForm(formClosure)
}

func (a App) formWidth() int {
	return components.CardInnerWidth(min(a.contentWidth(), 84))
}

func (a App) buildForm() *huh.Form {
	v := a.vals
	var fields []huh.Field
	if a.formErr != "" {
		fields = append(fields, huh.NewNote().Title("Could not submit").Description(a.formErr))
	}

	switch a.formKind {
	case formVote:
		fields = append(fields,
			huh.NewNote().Title(v.Summary),
			huh.NewConfirm().
				Title("Your vote").
				Affirmative("Approve").
				Negative("Reject").
				Value(&v.Approve),
			huh.NewInput().
				Title("Reason").
				Description("Required when rejecting").
				Value(&v.Reason),
		)

	case formDocument:
		kinds := make([]huh.Option[model.DocumentKind], len(model.DocumentKinds))
		for i, k := range model.DocumentKinds {
			kinds[i] = huh.NewOption(strings.ReplaceAll(string(k), "_", " "), k)
		}
		fields = append(fields,
			huh.NewInput().Title("Title").Value(&v.Title).Validate(required("title")),
			huh.NewSelect[model.DocumentKind]().Title("Type").Options(kinds...).Value(&v.Kind),
			huh.NewInput().Title("Link").Placeholder("https://").Value(&v.URL),
		)

	case formPolicy:
		fields = append(fields,
			huh.NewInput().Title("Title").Value(&v.Title).Validate(required("title")),
			huh.NewInput().Title("Category").Placeholder("loans, meetings, fines…").Value(&v.Category),
			huh.NewText().Title("Policy text").Lines(6).Value(&v.Body),
		)

	case formDelete:
		what := "document"
		if v.TargetPolicy {
			what = "policy"
		}
		fields = append(fields,
			huh.NewConfirm().
				Title("Delete "+what+" \""+v.TargetTitle+"\"?").
				Affirmative("Delete").
				Negative("Keep").
				Value(&v.Confirm),
		)

	case formClosure:
		fields = append(fields,
			huh.NewText().
				Title("Reason").
				Description("Members vote on closure before it takes effect").
				Lines(4).
				Value(&v.Reason),
			huh.NewSelect[model.Distribution]().
				Title("Distribute remaining funds").
				Options(
					huh.NewOption("In proportion to contributions", model.DistributeProportional),
					huh.NewOption("Equally between members", model.DistributeEqual),
				).
				Value(&v.Distribution),
			huh.NewConfirm().Title("Submit closure request?").Value(&v.Confirm),
		)
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(huh.ThemeBase()).
		WithShowHelp(true).
		WithWidth(a.formWidth())
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(name + " is required")
		}
		return nil
	}
}

func (a App) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	f, cmd := a.form.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		a.form = form
	}

	switch a.form.State {
	case huh.StateCompleted:
		return a.submit()
	case huh.StateAborted:
		a.closeForm()
		return a, nil
	}
	return a, cmd
}

// submit validates the form locally, then sends it to the backend.
func (a App) submit() (tea.Model, tea.Cmd) {
	v := *a.vals
	backend, chamaID := a.backend, a.chamaID
	kind := a.formKind

	var (
		call   func(ctx context.Context) error
		notice string
		err    error
	)
	switch kind {
	case formVote:
		vote := model.VoteRequest{Approve: v.Approve, Reason: strings.TrimSpace(v.Reason)}
		err = vote.Validate()
		call = func(ctx context.Context) error {
			return backend.VoteSettingsChange(ctx, chamaID, v.ChangeID, vote)
		}
		notice = "Vote recorded"

	case formDocument:
		doc := model.Document{ChamaID: chamaID, Title: strings.TrimSpace(v.Title), Kind: v.Kind, URL: strings.TrimSpace(v.URL)}
		err = doc.Validate()
		call = func(ctx context.Context) error {
			_, err := backend.CreateDocument(ctx, doc)
			return err
		}
		notice = "Document added"

	case formPolicy:
		p := model.Policy{ChamaID: chamaID, Title: strings.TrimSpace(v.Title), Category: strings.TrimSpace(v.Category), Body: v.Body}
		err = p.Validate()
		call = func(ctx context.Context) error {
			_, err := backend.CreatePolicy(ctx, p)
			return err
		}
		notice = "Policy added"

	case formDelete:
		if !v.Confirm {
			a.closeForm()
			return a, nil
		}
		call = func(ctx context.Context) error {
			if v.TargetPolicy {
				return backend.DeletePolicy(ctx, chamaID, v.TargetID)
			}
			return backend.DeleteDocument(ctx, chamaID, v.TargetID)
		}
		notice = "Deleted " + v.TargetTitle

	case formClosure:
		if !v.Confirm {
			a.closeForm()
			return a, nil
		}
		req := model.ClosureRequest{ChamaID: chamaID, Reason: strings.TrimSpace(v.Reason), Distribution: v.Distribution}
		err = req.Validate()
		call = func(ctx context.Context) error {
			return backend.RequestClosure(ctx, req)
		}
		notice = "Closure request submitted for a vote"

	default:
		a.closeForm()
		return a, nil
	}

	if err != nil {
		return a.failForm(err)
	}

	a.submitting = true
	return a, tea.Batch(a.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitResultMsg{kind: kind, notice: notice, err: call(ctx)}
	})
}

func (a App) handleSubmitResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	a.submitting = false
	if a.form == nil || msg.kind != a.formKind {
		return a, nil
	}
	if msg.err != nil {
		return a.failForm(msg.err)
	}
	a.closeForm()
	a.notice = msg.notice
	if a.refreshing {
		return a, nil
	}
	a.refreshing = true
	return a, refreshDataCmd(a.backend, a.chamaID)
}

// failForm reopens the current form with its values and the error shown.
func (a App) failForm(err error) (tea.Model, tea.Cmd) {
	a.formErr = errorText(err)
	a.vals.Confirm = false
	a.form = a.buildForm()
	return a, a.form.Init()
}

func (a *App) closeForm() {
	a.form = nil
	a.formKind = formNone
	a.formErr = ""
}

func (a App) viewForm(cw int) string {
	w := min(cw, 84)
	card := components.ContentCard(a.formKind.title(), a.form.View(), w)
	return lipgloss.PlaceHorizontal(cw, lipgloss.Center, card)
}
