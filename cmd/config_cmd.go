package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bl4ckh401/chama/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Listen address: %s\n", cfg.Server.Addr)
	fmt.Printf("    Production:     %v\n", cfg.Server.Production)
	fmt.Printf("    Cookie name:    %s\n", cfg.Server.CookieName)
	fmt.Printf("    Events buffer:  %d\n", cfg.Server.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Upstream]")
	fmt.Printf("    API:     %s\n", cfg.Upstream.BaseURL)
	fmt.Printf("    Socket:  %s\n", cfg.Upstream.SocketEndpoint())
	fmt.Printf("    Timeout: %s\n", cfg.Upstream.Timeout())
	fmt.Println()

	fmt.Println("  [Client]")
	fmt.Printf("    Proxy:       %s\n", cfg.Client.PortalURL)
	fmt.Printf("    Cookie file: %s\n", cfg.Client.CookieJarPath())
	fmt.Println()

	fmt.Println("  [Notify]")
	fmt.Printf("    Record:          %v\n", cfg.Notify.Record)
	fmt.Printf("    Log database:    %s\n", cfg.Notify.NotificationDBPath())
	fmt.Printf("    Reconnect delay: %s\n", cfg.Notify.ReconnectDelayDuration())
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `chama setup` to reconfigure.")
	return nil
}
