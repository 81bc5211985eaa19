package tui

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bl4ckh401/chama/internal/model"
)

type stubResolver struct {
	user  *model.User
	err   error
	calls atomic.Int32
}

func (s *stubResolver) Session(context.Context) (*model.User, error) {
	s.calls.Add(1)
	return s.user, s.err
}

type childModel struct{ name string }

func (c childModel) Init() tea.Cmd                       { return nil }
func (c childModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return c, nil }
func (c childModel) View() string                        { return "hello " + c.name }

func buildChild(u model.User) tea.Model { return childModel{name: u.DisplayName()} }

// settle runs the guard's init command and feeds the result back.
func settle(t *testing.T, g Guard) (Guard, tea.Cmd) {
	t.Helper()
	cmd := g.Init()
	if cmd == nil {
		t.Fatal("expected a resolve command")
	}
	msg := cmd()
	next, out := g.Update(msg)
	return next.(Guard), out
}

func TestGuardCachedSessionRendersImmediately(t *testing.T) {
	r := &stubResolver{}
	g := NewGuard(r, "/dashboard", &model.User{Name: "Amina"}, buildChild)

	if got := g.View(); got != "hello Amina" {
		t.Errorf("View() = %q", got)
	}
	if g.Init() != nil {
		t.Error("cached session should not trigger a lookup")
	}
	if r.calls.Load() != 0 {
		t.Errorf("resolver called %d times", r.calls.Load())
	}
}

func TestGuardRendersNothingWhileChecking(t *testing.T) {
	g := NewGuard(&stubResolver{}, "/dashboard", nil, buildChild)
	if got := g.View(); got != "" {
		t.Errorf("View() while checking = %q, want empty", got)
	}
	if g.User() != nil {
		t.Error("User() should be nil while checking")
	}
}

func TestGuardResolvedSessionShowsChild(t *testing.T) {
	r := &stubResolver{user: &model.User{ID: "u1", Username: "otieno"}}
	g, _ := settle(t, NewGuard(r, "/dashboard", nil, buildChild))

	if got := g.View(); got != "hello otieno" {
		t.Errorf("View() = %q", got)
	}
	if g.Redirect() != "" {
		t.Errorf("unexpected redirect %q", g.Redirect())
	}
	if g.User() == nil || g.User().ID != "u1" {
		t.Errorf("User() = %+v", g.User())
	}
}

func TestGuardNoSessionNavigatesOnceWithReturnTo(t *testing.T) {
	r := &stubResolver{}
	g, cmd := settle(t, NewGuard(r, "/chamas/c1?tab=loans", nil, buildChild))

	if cmd == nil {
		t.Fatal("expected a navigation command")
	}
	nav, ok := cmd().(NavigateMsg)
	if !ok {
		t.Fatalf("command produced %T, want NavigateMsg", cmd())
	}
	want := "/login?returnTo=%2Fchamas%2Fc1%3Ftab%3Dloans"
	if nav.URL != want {
		t.Errorf("URL = %q, want %q", nav.URL, want)
	}
	if g.View() != "" {
		t.Error("redirecting guard should render nothing")
	}

	// A second resolution must not navigate again.
	_, again := g.Update(sessionResolvedMsg{})
	if again != nil {
		t.Error("second resolution produced another command")
	}

	// The host acting on the navigation quits the program.
	_, quit := g.Update(nav)
	if quit == nil {
		t.Fatal("navigation should quit")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestGuardErrorNavigatesToPlainLogin(t *testing.T) {
	r := &stubResolver{err: errors.New("connection refused")}
	g, cmd := settle(t, NewGuard(r, "/dashboard", nil, buildChild))

	nav, ok := cmd().(NavigateMsg)
	if !ok || nav.URL != "/login" {
		t.Fatalf("navigation = %+v, want /login", nav)
	}
	if g.Redirect() != "/login" {
		t.Errorf("Redirect() = %q", g.Redirect())
	}
}

func TestGuardDropsResultAfterUnmount(t *testing.T) {
	r := &stubResolver{}
	g := NewGuard(r, "/dashboard", nil, buildChild)
	cmd := g.Init()

	g.Unmount()
	if msg := cmd(); msg != nil {
		t.Errorf("resolve after unmount produced %T", msg)
	}

	next, out := g.Update(sessionResolvedMsg{})
	if out != nil || next.(Guard).Redirect() != "" {
		t.Error("unmounted guard reacted to a late result")
	}
}
