// Command leakhunt finds the member of a Discord guild who copies messages out
// of role-gated channels.
//
// It revokes the gating roles from half of the suspects, posts a unique canary
// message and watches the channel the leaker forwards to. Repeating this
// narrows the suspects down to one, who is then confirmed in isolation. Roles
// are restored whenever a hunt ends, whether it succeeded, failed or was
// interrupted.
//
// # Commands
//
//	leakhunt init-config               write leakhunt.yaml with defaults
//	leakhunt check                     verify the token and proxy
//	leakhunt run [--json]              run one hunt in the foreground
//	leakhunt serve                     serve the HTTP control API
//	leakhunt simulate --members=32     run a hunt against an in-memory guild
//	leakhunt history [id]              show recorded sessions
//
// Every setting can also come from the environment, e.g.
// LEAKHUNT_DISCORD_TOKEN or LEAKHUNT_HUNT_GUILD_ID.
package main

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flashbots/leakhunt/cmd/common"
	"github.com/flashbots/leakhunt/config"
)

var (
	configPath string

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
	colorWhite  = color.New(color.FgWhite)
)

var rootCmd = &cobra.Command{
	Use:           "leakhunt",
	Short:         "Find who leaks messages out of role-gated Discord channels",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default ./leakhunt.yaml)")
	rootCmd.AddCommand(serveCmd(), runCmd(), checkCmd(), simulateCmd(), historyCmd(), initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp loads the configuration and builds the logger it describes.
func loadApp() (*config.AppConfig, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := common.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	return cfg, log, nil
}
