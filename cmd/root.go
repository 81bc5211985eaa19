// Package cmd implements the chama CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/config"
	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/pipeline"
	"github.com/bl4ckh401/chama/internal/portal"
	"github.com/bl4ckh401/chama/internal/tui/theme"
	"github.com/bl4ckh401/chama/internal/upstream"
)

var (
	flagDays   int
	flagQuiet  bool
	flagDebug  bool
	flagPortal string
	flagChama  string
)

// Set by PersistentPreRunE for every command.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:               "chama",
	Short:             "Chama group savings portal",
	Long:              "Run the chama session proxy, manage your login and follow your group's books.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Verbose development logging")
	rootCmd.PersistentFlags().StringVar(&flagPortal, "portal", "", "Proxy base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagChama, "chama", "", "Group id (defaults to your own group)")
}

func setup(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if flagPortal != "" {
		cfg.Client.PortalURL = flagPortal
	}
	theme.SetActive(cfg.Appearance.Theme)

	logger, err = newLogger(flagDebug)
	return errors.Annotate(err, "building logger")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zc.Build()
}

// openPortal returns a client for the configured proxy. Callers must Close
// it so refreshed cookies are saved.
func openPortal() (*portal.Client, error) {
	return portal.New(cfg.Client.PortalURL, cfg.Client.CookieJarPath())
}

// signedIn resolves the current session through the proxy and returns the
// user together with a backend client carrying the session token.
func signedIn(ctx context.Context, pc *portal.Client) (*model.User, *upstream.Client, error) {
	user, err := pc.Session(ctx)
	if err != nil {
		return nil, nil, errors.Annotate(err, "checking session")
	}
	if user == nil {
		return nil, nil, errors.Unauthorizedf("not signed in, run `chama auth login`")
	}
	token, err := pc.Token(ctx)
	if err != nil {
		return nil, nil, errors.Annotate(err, "fetching session token")
	}
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout()).WithToken(token)
	return user, client, nil
}

func chamaFor(user *model.User) (string, error) {
	if flagChama != "" {
		return flagChama, nil
	}
	if user.ChamaID == "" {
		return "", errors.NotFoundf("group for %s (pass --chama)", user.DisplayName())
	}
	return user.ChamaID, nil
}

// loadData is the shared data loading path used by the reporting commands.
func loadData(ctx context.Context, src pipeline.Source, chamaID string) (*pipeline.LoadResult, error) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Fetching group records...\n")
	}

	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		fmt.Fprintf(os.Stderr, "\r  Loading [%d/%d]", current, total)
	}

	result, err := pipeline.Load(ctx, src, chamaID, progressFn)
	if err != nil {
		return nil, err
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "\r  Loaded %s for %s    \n",
			cli.FormatCount(len(result.Data.Transactions), "transaction", "transactions"),
			result.Data.Chama.Name,
		)
	}
	return result, nil
}
