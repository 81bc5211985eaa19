// Package tui provides the interactive Bubble Tea dashboard for a chama.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/pipeline"
	"github.com/bl4ckh401/chama/internal/tui/components"
	"github.com/bl4ckh401/chama/internal/tui/theme"
	"github.com/bl4ckh401/chama/internal/upstream"
)

// Backend is the API surface the dashboard reads from and writes to.
// *upstream.Client satisfies it.
type Backend interface {
	pipeline.Source
	VoteSettingsChange(ctx context.Context, chamaID, changeID string, vote model.VoteRequest) error
	CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	DeleteDocument(ctx context.Context, chamaID, docID string) error
	CreatePolicy(ctx context.Context, p model.Policy) (*model.Policy, error)
	DeletePolicy(ctx context.Context, chamaID, policyID string) error
	RequestClosure(ctx context.Context, req model.ClosureRequest) error
}

// DataLoadedMsg is sent when the initial load finishes.
type DataLoadedMsg struct {
	Result   *pipeline.LoadResult
	Err      error
	LoadTime time.Duration
}

// ProgressMsg reports fetch progress during the initial load.
type ProgressMsg struct {
	Current int
	Total   int
}

// RefreshDataMsg is sent when a background refresh completes.
type RefreshDataMsg struct {
	Result   *pipeline.LoadResult
	Err      error
	LoadTime time.Duration
}

// NoticeMsg carries a live notification into the dashboard.
type NoticeMsg struct {
	Notification model.Notification
}

// Options tune the dashboard.
type Options struct {
	// Days is the comparison window for the overview cards.
	Days int
	// RefreshInterval enables periodic reloads when positive.
	RefreshInterval time.Duration
	// Notices feeds live notifications into the status bar.
	Notices <-chan model.Notification
}

// App is the root dashboard model.
type App struct {
	backend Backend
	user    model.User
	chamaID string

	// Data
	data        *pipeline.Dataset
	partial     map[string]error
	loadErr     error
	loaded      bool
	loadTime    time.Duration
	lastRefresh time.Time
	refreshing  bool

	autoRefresh     bool
	refreshInterval time.Duration

	// Pre-computed for the current window
	cmp       model.PeriodComparison
	monthly   []model.MonthlyStats
	standings []model.MemberStats
	pending   []model.SettingsChange

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	days      int
	scroll    [5]int
	govCursor int
	docCursor int
	notice    string

	// Modal form
	form       *huh.Form
	formKind   formKind
	formErr    string
	submitting bool
	vals       *formValues

	// Loading
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg

	notices <-chan model.Notification
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	minContentHeight = 5
	loadTimeout      = time.Minute
	monthsCharted    = 12
)

// Tab indexes.
const (
	tabOverview = iota
	tabMembers
	tabFinance
	tabGovernance
	tabDocuments
)

// NewApp creates the dashboard for user's group.
func NewApp(backend Backend, user model.User, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	days := opts.Days
	if days <= 0 {
		days = 30
	}

	return App{
		backend:         backend,
		user:            user,
		chamaID:         user.ChamaID,
		days:            days,
		autoRefresh:     opts.RefreshInterval > 0,
		refreshInterval: opts.RefreshInterval,
		notices:         opts.Notices,
		spinner:         sp,
		vals:            &formValues{},
		loadSub:         make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		loadDataCmd(a.backend, a.chamaID, a.loadSub),
		a.spinner.Tick,
		tickCmd(),
	}
	if a.notices != nil {
		cmds = append(cmds, waitForNotice(a.notices))
	}
	return tea.Batch(cmds...)
}

func (a *App) apply(res *pipeline.LoadResult, err error, took time.Duration) {
	a.loadTime = took
	a.lastRefresh = time.Now()
	if err != nil {
		a.loadErr = err
		return
	}
	a.loadErr = nil
	a.data = res.Data
	a.partial = res.Errors
	a.recompute()
}

func (a *App) recompute() {
	if a.data == nil {
		return
	}
	now := time.Now()
	a.cmp = pipeline.Compare(a.data, a.days, now)
	a.monthly = pipeline.MonthlyContributions(a.data.Transactions, now.AddDate(0, -(monthsCharted-1), 0), now)
	a.standings = pipeline.MemberStandings(a.data)
	a.pending = pipeline.PendingChanges(a.data.Changes)

	a.govCursor = clampCursor(a.govCursor, len(a.data.Changes))
	a.docCursor = clampCursor(a.docCursor, len(a.data.Documents)+len(a.data.Policies))
}

func clampCursor(c, n int) int {
	if c >= n {
		c = n - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (a App) currency() string {
	if a.data == nil {
		return "KES"
	}
	return a.data.Chama.CurrencyOrDefault()
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.form != nil {
			a.form = a.form.WithWidth(a.formWidth())
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.form != nil {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			return a.moveCursor(-1), nil
		case tea.MouseButtonWheelDown:
			return a.moveCursor(1), nil
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					a.activeTab = tab
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKeys(msg)

	case DataLoadedMsg:
		a.loaded = true
		a.apply(msg.Result, msg.Err, msg.LoadTime)
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case RefreshDataMsg:
		a.refreshing = false
		a.apply(msg.Result, msg.Err, msg.LoadTime)
		if msg.Err != nil {
			a.notice = "Refresh failed: " + errorText(msg.Err)
		}
		return a, nil

	case NoticeMsg:
		n := msg.Notification
		a.notice = fmt.Sprintf("[%s] %s", n.Type, n.Message)
		cmds := []tea.Cmd{waitForNotice(a.notices)}
		if a.loaded && !a.refreshing && refreshesData(n.Type) {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.backend, a.chamaID))
		}
		return a, tea.Batch(cmds...)

	case submitResultMsg:
		return a.handleSubmitResult(msg)

	case spinner.TickMsg:
		if !a.loaded || a.submitting {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing && a.refreshInterval > 0 &&
			time.Since(a.lastRefresh) >= a.refreshInterval {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.backend, a.chamaID))
		}
		return a, tea.Batch(cmds...)
	}

	if a.form != nil {
		return a.updateForm(msg)
	}
	return a, nil
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	if a.form != nil {
		if a.submitting {
			return a, nil
		}
		if key == "esc" {
			a.closeForm()
			return a, nil
		}
		return a.updateForm(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.backend, a.chamaID)
		}
		return a, nil
	case "R":
		a.autoRefresh = !a.autoRefresh && a.refreshInterval > 0
		return a, nil
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case "j", "down":
		return a.moveCursor(1), nil
	case "k", "up":
		return a.moveCursor(-1), nil
	case "home":
		a.scroll[a.activeTab] = 0
		a.govCursor, a.docCursor = 0, 0
		return a, nil
	}

	if a.data == nil {
		return a, nil
	}

	switch a.activeTab {
	case tabGovernance:
		switch key {
		case "enter", "v":
			return a.openVoteForm()
		}
	case tabDocuments:
		switch key {
		case "n":
			return a.openDocumentForm()
		case "p":
			return a.openPolicyForm()
		case "x", "delete":
			return a.openDeleteForm()
		case "c":
			return a.openClosureForm()
		}
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

func (a App) moveCursor(delta int) App {
	switch a.activeTab {
	case tabGovernance:
		if a.data != nil {
			a.govCursor = clampCursor(a.govCursor+delta, len(a.data.Changes))
		}
	case tabDocuments:
		if a.data != nil {
			a.docCursor = clampCursor(a.docCursor+delta, len(a.data.Documents)+len(a.data.Policies))
		}
	default:
		a.scroll[a.activeTab] = max(0, a.scroll[a.activeTab]+delta)
	}
	return a
}

func refreshesData(t model.NotificationType) bool {
	switch t {
	case model.NotifyTransaction, model.NotifyPayment, model.NotifyGroup:
		return true
	}
	return false
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.data == nil {
		return a.viewLoadError()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  chama needs at least %d columns.\n",
		a.width, minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) centeredCard(body string) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3).
		Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewLoading() string {
	t := theme.Active
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	count := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logo.Render("◈ chama"))
	b.WriteString(muted.Render(" · " + a.user.DisplayName()))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	if a.progressMax > 0 {
		barW := min(max(a.width-30, 20), 40)
		b.WriteString(muted.Render(" Fetching group data\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(count.Render(fmt.Sprintf("%d", a.progress)))
		b.WriteString(muted.Render(" / "))
		b.WriteString(count.Render(fmt.Sprintf("%d", a.progressMax)))
	} else {
		b.WriteString(muted.Render(" Connecting..."))
	}
	return a.centeredCard(b.String())
}

func (a App) viewLoadError() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	msg := "no data"
	if a.loadErr != nil {
		msg = errorText(a.loadErr)
	}
	body := title.Render("Could not load your group") + "\n\n" +
		muted.Render(msg) + "\n\n" +
		muted.Render("r to retry · q to quit")
	return a.centeredCard(body)
}

func (a App) viewHelp() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	section := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	groups := []struct {
		name     string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"o m f g d", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Move selection / scroll"},
		}},
		{"Governance", [][2]string{
			{"Enter v", "Vote on selected proposal"},
		}},
		{"Documents", [][2]string{
			{"n", "Add document"},
			{"p", "Add policy"},
			{"x", "Delete selected"},
			{"c", "Request group closure"},
		}},
		{"General", [][2]string{
			{"r", "Refresh data"},
			{"R", "Toggle auto-refresh"},
			{"Esc", "Close form"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(section.Render(g.name))
		b.WriteString("\n")
		for _, kb := range g.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", kb[0])),
				desc.Render(kb[1]))
		}
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("Press any key to close"))
	return a.centeredCard(b.String())
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	pill := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	filter := pill.Render(" ") + accent.Render(a.data.Chama.Name) +
		pill.Render(" │ ") + accent.Render(fmt.Sprintf("%dd", a.days)) +
		pill.Render(" │ ") + accent.Render(a.currency())
	if len(a.partial) > 0 {
		warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
		filter += pill.Render(" │ ") + warn.Render(fmt.Sprintf("%d sections unavailable", len(a.partial)))
	}
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(filter)

	notice := a.notice
	if a.submitting {
		notice = a.spinner.View() + " submitting…"
	}
	status := components.RenderStatusBar(w, components.Status{
		User:       a.user.DisplayName(),
		Role:       string(a.user.Role),
		DataAge:    cli.FormatRelative(a.lastRefresh, time.Now()),
		Refreshing: a.refreshing,
		Notice:     notice,
	})

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(status), minContentHeight)

	var content string
	if a.form != nil {
		content = a.viewForm(cw)
	} else {
		switch a.activeTab {
		case tabOverview:
			content = a.renderOverviewTab(cw)
		case tabMembers:
			content = a.renderMembersTab(cw)
		case tabFinance:
			content = a.renderFinanceTab(cw)
		case tabGovernance:
			content = a.renderGovernanceTab(cw)
		case tabDocuments:
			content = a.renderDocumentsTab(cw)
		}
		content = scrollLines(content, a.scroll[a.activeTab])
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	out := lipgloss.JoinVertical(lipgloss.Left, header, content, status)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, out,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Commands ───────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd runs the loader in a background goroutine, streaming
// ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(backend Backend, chamaID string, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()

			// Non-blocking so workers are never stalled by the UI.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}

			res, err := pipeline.Load(ctx, backend, chamaID, progressFn)
			sub <- DataLoadedMsg{Result: res, Err: err, LoadTime: time.Since(start)}
		}()
		return <-sub
	}
}

func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func refreshDataCmd(backend Backend, chamaID string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		res, err := pipeline.Load(ctx, backend, chamaID, nil)
		return RefreshDataMsg{Result: res, Err: err, LoadTime: time.Since(start)}
	}
}

func waitForNotice(ch <-chan model.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg{Notification: n}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

// errorText returns the backend's message for err when it has one.
func errorText(err error) string {
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return err.Error()
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func scrollLines(s string, offset int) string {
	if offset <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if offset >= len(lines) {
		offset = len(lines) - 1
	}
	return strings.Join(lines[offset:], "\n")
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with the background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}
