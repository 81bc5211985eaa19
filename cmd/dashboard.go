package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/juju/errors"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/notify"
	"github.com/bl4ckh401/chama/internal/tui"
	"github.com/bl4ckh401/chama/internal/upstream"
)

var (
	flagRefresh  time.Duration
	flagNoNotify bool
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive group dashboard",
	RunE:    runDashboard,
}

func init() {
	dashboardCmd.Flags().DurationVar(&flagRefresh, "refresh", 0, "Reload the group every interval (0 disables)")
	dashboardCmd.Flags().BoolVar(&flagNoNotify, "no-notify", false, "Do not follow live notifications")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	// Force TrueColor profile so all background styling produces ANSI codes
	lipgloss.SetColorProfile(termenv.TrueColor)

	pc, err := openPortal()
	if err != nil {
		return err
	}
	defer func() { _ = pc.Close() }()

	// A missing token is not fatal here: the guard resolves the session
	// and sends the user to sign in.
	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	token, err := pc.Token(ctx)
	cancel()
	if err != nil && !errors.Is(err, errors.Unauthorized) {
		return describe(err)
	}

	notices := make(chan model.Notification, 16)
	if token != "" && !flagNoNotify {
		listener := notify.New(notify.Config{
			URL:            cfg.Upstream.SocketEndpoint(),
			Token:          token,
			ReconnectDelay: cfg.Notify.ReconnectDelayDuration(),
			Logger:         logger,
		})
		unsubscribe := listener.Subscribe(func(n model.Notification) {
			select {
			case notices <- n:
			default:
			}
		})
		defer unsubscribe()
		if err := listener.Connect(cmd.Context()); err != nil {
			logger.Warn("live notifications unavailable", zap.Error(err))
		}
		defer listener.Disconnect()
	}

	backend := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout()).WithToken(token)
	opts := tui.Options{
		Days:            flagDays,
		RefreshInterval: flagRefresh,
		Notices:         notices,
	}

	guard := tui.NewGuard(pc, "/dashboard", nil, func(user model.User) tea.Model {
		if flagChama != "" {
			user.ChamaID = flagChama
		}
		return tui.NewApp(backend, user, opts)
	})

	p := tea.NewProgram(guard, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return errors.Annotate(err, "dashboard")
	}

	if g, ok := final.(tui.Guard); ok && g.Redirect() != "" {
		fmt.Println("  Not signed in. Run `chama auth login` and try again.")
		logger.Debug("guard redirect", zap.String("url", g.Redirect()))
	}
	return nil
}
