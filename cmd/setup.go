package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/bl4ckh401/chama/internal/config"
	"github.com/bl4ckh401/chama/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	next := cfg

	themes := make([]huh.Option[string], 0, len(theme.Names()))
	for _, name := range theme.Names() {
		themes = append(themes, huh.NewOption(name, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to chama").
				Description("Point the CLI at your group's backend and session proxy."),
			huh.NewInput().
				Title("Backend API URL").
				Description("Where the group API is served").
				Value(&next.Upstream.BaseURL).
				Validate(validURL),
			huh.NewInput().
				Title("Proxy URL").
				Description("The `chama serve` address the CLI signs in through").
				Value(&next.Client.PortalURL).
				Validate(validURL),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&next.Appearance.Theme),
			huh.NewConfirm().
				Title("Record notifications locally?").
				Description("Keeps a log for `chama notify history`").
				Affirmative("Yes").
				Negative("No").
				Value(&next.Notify.Record),
		),
	).WithTheme(huh.ThemeBase())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup canceled, nothing saved.")
			return nil
		}
		return errors.Trace(err)
	}

	next.Upstream.BaseURL = strings.TrimRight(next.Upstream.BaseURL, "/")
	next.Client.PortalURL = strings.TrimRight(next.Client.PortalURL, "/")
	if err := config.Save(next); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println()
	fmt.Println("  Next steps:")
	fmt.Println("    chama serve --detach   start the session proxy")
	fmt.Println("    chama auth login       sign in")
	fmt.Println("    chama dashboard        open the dashboard")
	fmt.Println()
	return nil
}

func validURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NotValidf("URL %q", s)
	}
	return nil
}
