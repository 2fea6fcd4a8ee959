package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flashbots/leakhunt/cmd/common"
	"github.com/flashbots/leakhunt/config"
	"github.com/flashbots/leakhunt/hunt"
	"github.com/flashbots/leakhunt/services"
)

// huntFlags override the hunt section of the config file.
type huntFlags struct {
	guildID        string
	roleIDs        []string
	leakChannelID  string
	probeChannelID string
	webhookURL     string
	template       string
	timeoutSeconds int
}

func (f *huntFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.guildID, "guild", "", "guild id")
	cmd.Flags().StringSliceVar(&f.roleIDs, "roles", nil, "gating role ids, comma separated")
	cmd.Flags().StringVar(&f.leakChannelID, "leak-channel", "", "channel the leaker forwards to")
	cmd.Flags().StringVar(&f.probeChannelID, "probe-channel", "", "gated channel the probe is posted in")
	cmd.Flags().StringVar(&f.webhookURL, "webhook", "", "post probes through this webhook instead")
	cmd.Flags().StringVar(&f.template, "template", "", "probe text, {nonce} is replaced by a unique tag")
	cmd.Flags().IntVar(&f.timeoutSeconds, "timeout", 0, "seconds to wait for a leak per round")
}

func (f *huntFlags) apply(h *config.HuntConfig) {
	if f.guildID != "" {
		h.GuildID = f.guildID
	}
	if len(f.roleIDs) > 0 {
		h.RoleIDs = f.roleIDs
	}
	if f.leakChannelID != "" {
		h.LeakChannelID = f.leakChannelID
	}
	if f.probeChannelID != "" {
		h.ProbeChannelID = f.probeChannelID
	}
	if f.webhookURL != "" {
		h.WebhookURL = f.webhookURL
	}
	if f.template != "" {
		h.ProbeTemplate = f.template
	}
	if f.timeoutSeconds != 0 {
		h.TimeoutSeconds = f.timeoutSeconds
	}
}

func runCmd() *cobra.Command {
	var (
		flags   huntFlags
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one hunt in the foreground",
		Long: `Run one hunt against the configured guild and print each round.

Interrupting with Ctrl-C stops the hunt after the current request and
restores every role before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp()
			if err != nil {
				return err
			}
			flags.apply(&cfg.Hunt)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			platform, err := common.NewPlatform(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer platform.Close()

			sessionCfg, err := cfg.SessionConfig(platform)
			if err != nil {
				return err
			}

			store, err := common.NewHistoryStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := printer{w: cmd.OutOrStdout(), json: jsonOut}
			return huntOnce(ctx, log, sessionCfg, store, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print PROGRESS: and RESULT: json lines")
	return cmd
}

// huntOnce runs a session to completion and records it. A stopped session is
// not an error.
func huntOnce(ctx context.Context, log *slog.Logger, cfg hunt.SessionConfig, store services.HistoryStore, out printer) error {
	ctrl := hunt.NewController(&hunt.ControllerConfig{Log: log})
	res, err := ctrl.Run(ctx, cfg, out.progress)

	stopped := errors.Is(err, hunt.ErrStopped)
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	rec := services.NewSessionRecord(cfg.GuildID, ctrl.Status(), stopped)
	if serr := store.SaveSession(saveCtx, rec); serr != nil {
		log.Warn("Failed to record session", "session", rec.ID, "err", serr)
	}

	switch {
	case stopped:
		colorYellow.Fprintln(os.Stderr, "Stopped. Roles have been restored.")
		return nil
	case err != nil:
		return err
	}
	out.result(res)
	return nil
}
