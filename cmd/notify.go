package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/notify"
	"github.com/bl4ckh401/chama/internal/store"
)

var (
	flagRecord bool
	flagLimit  int
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Follow and review group notifications",
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print notifications as they arrive",
	RunE:  runListen,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded notifications",
	RunE:  runHistory,
}

func init() {
	listenCmd.Flags().BoolVar(&flagRecord, "record", false, "Append received notifications to the local log")
	historyCmd.Flags().IntVar(&flagLimit, "limit", 25, "Number of notifications to show")

	notifyCmd.AddCommand(listenCmd, historyCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	token, err := sessionToken(cmd.Context())
	if err != nil {
		return err
	}

	var log *store.Log
	if flagRecord || cfg.Notify.Record {
		log, err = store.Open(cfg.Notify.NotificationDBPath())
		if err != nil {
			return err
		}
		defer func() { _ = log.Close() }()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := notify.New(notify.Config{
		URL:            cfg.Upstream.SocketEndpoint(),
		Token:          token,
		ReconnectDelay: cfg.Notify.ReconnectDelayDuration(),
		Logger:         logger,
	})
	unsubscribe := client.Subscribe(func(n model.Notification) {
		fmt.Println(notificationLine(n))
		if log == nil {
			return
		}
		if _, err := log.Append(ctx, n); err != nil {
			logger.Warn("recording notification", zap.String("kind", string(n.Type)), zap.Error(err))
		}
	})
	defer unsubscribe()

	if err := client.Connect(ctx); err != nil {
		return errors.Annotate(err, "connecting to notifications")
	}
	defer client.Disconnect()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Listening on %s (ctrl+c to stop)\n", cfg.Upstream.SocketEndpoint())
	}
	<-ctx.Done()
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	log, err := store.Open(cfg.Notify.NotificationDBPath())
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	ctx := cmd.Context()
	recent, err := log.Recent(ctx, flagLimit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("\n  No notifications recorded yet.")
		fmt.Println("  Run `chama notify listen --record` to start a log.")
		return nil
	}

	now := time.Now()
	rows := make([][]string, len(recent))
	for i, n := range recent {
		rows[i] = []string{cli.FormatRelative(n.ReceivedAt, now), string(n.Type), n.Message}
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Last %s", cli.FormatCount(len(recent), "notification", "notifications")),
		Headers: []string{"When", "Type", "Message"},
		Rows:    rows,
	}))

	counts, err := log.CountByType(ctx)
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	pairs := make([][2]string, len(kinds))
	for i, k := range kinds {
		pairs[i] = [2]string{k, cli.FormatNumber(int64(counts[model.NotificationType(k)]))}
	}
	fmt.Print(cli.RenderKeyValues("By type", pairs))
	fmt.Println()
	return nil
}

// sessionToken fetches the token of the signed-in session from the proxy.
func sessionToken(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(parent, authTimeout)
	defer cancel()

	pc, err := openPortal()
	if err != nil {
		return "", err
	}
	defer func() { _ = pc.Close() }()

	token, err := pc.Token(ctx)
	if errors.Is(err, errors.Unauthorized) {
		return "", errors.New("not signed in, run `chama auth login`")
	}
	return token, describe(err)
}

func notificationLine(n model.Notification) string {
	at := n.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("  %s  %-12s %s", at.Local().Format("15:04:05"), n.Type, n.Message)
}
