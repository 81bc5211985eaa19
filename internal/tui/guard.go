package tui

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/session"
)

const resolveTimeout = 15 * time.Second

// SessionResolver looks up the signed-in user. A nil user with a nil
// error means there is no session.
type SessionResolver interface {
	Session(ctx context.Context) (*model.User, error)
}

// NavigateMsg asks the host to leave the current view for URL.
type NavigateMsg struct {
	URL string
}

type sessionResolvedMsg struct {
	user *model.User
	err  error
}

type guardState int

const (
	guardChecking guardState = iota
	guardAuthenticated
	guardRedirecting
)

// Guard renders its child only once a session is known. Without one it
// navigates to the login page exactly once and renders nothing.
type Guard struct {
	resolver SessionResolver
	path     string
	build    func(model.User) tea.Model

	state    guardState
	user     *model.User
	child    tea.Model
	redirect string

	// mounted is shared by every copy of the model so a resolve that
	// finishes after Unmount is dropped.
	mounted *atomic.Bool
}

// NewGuard returns a guard for the view at path. When cached is non-nil
// the child is built and shown immediately without a lookup.
func NewGuard(resolver SessionResolver, path string, cached *model.User, build func(model.User) tea.Model) Guard {
	g := Guard{
		resolver: resolver,
		path:     path,
		build:    build,
		mounted:  new(atomic.Bool),
	}
	g.mounted.Store(true)
	if cached != nil {
		g.state = guardAuthenticated
		g.user = cached
		g.child = build(*cached)
	}
	return g
}

// Init implements tea.Model.
func (g Guard) Init() tea.Cmd {
	if g.state == guardAuthenticated {
		return g.child.Init()
	}
	return g.resolve()
}

func (g Guard) resolve() tea.Cmd {
	resolver, mounted := g.resolver, g.mounted
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		user, err := resolver.Session(ctx)
		if !mounted.Load() {
			return nil
		}
		return sessionResolvedMsg{user: user, err: err}
	}
}

// Update implements tea.Model.
func (g Guard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionResolvedMsg:
		if !g.mounted.Load() || g.state != guardChecking {
			return g, nil
		}
		switch {
		case msg.err != nil:
			return g.navigate(session.LoginPath)
		case msg.user == nil:
			return g.navigate(session.LoginURL(g.path))
		}
		g.state = guardAuthenticated
		g.user = msg.user
		g.child = g.build(*msg.user)
		return g, g.child.Init()

	case NavigateMsg:
		if msg.URL == g.redirect {
			return g, tea.Quit
		}
		return g, nil
	}

	if g.state != guardAuthenticated {
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
			return g, tea.Quit
		}
		return g, nil
	}

	var cmd tea.Cmd
	g.child, cmd = g.child.Update(msg)
	return g, cmd
}

func (g Guard) navigate(url string) (tea.Model, tea.Cmd) {
	g.state = guardRedirecting
	g.redirect = url
	return g, func() tea.Msg { return NavigateMsg{URL: url} }
}

// View implements tea.Model.
func (g Guard) View() string {
	if g.state != guardAuthenticated {
		return ""
	}
	return g.child.View()
}

// Unmount marks the guard torn down. Pending lookups are discarded.
func (g Guard) Unmount() {
	g.mounted.Store(false)
}

// Redirect returns where the guard navigated, or "" if it did not.
func (g Guard) Redirect() string {
	return g.redirect
}

// User returns the resolved user, or nil while checking or redirecting.
func (g Guard) User() *model.User {
	if g.state != guardAuthenticated {
		return nil
	}
	return g.user
}

// Child returns the wrapped model once authenticated.
func (g Guard) Child() tea.Model {
	return g.child
}
