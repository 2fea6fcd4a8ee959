package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flashbots/leakhunt/cmd/common"
	"github.com/flashbots/leakhunt/hunt"
)

const (
	simGuild   = "sim-guild"
	simRole    = "sim-gate"
	simLeak    = "sim-leak"
	simChannel = "sim-gated"
)

func simulateCmd() *cobra.Command {
	var (
		members int
		leaker  int
		delay   time.Duration
		timeout int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a hunt against an in-memory guild",
		Long: `Run a full hunt against a simulated guild. Member number --leaker
forwards every probe it can see after --delay; 0 means nobody leaks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if members < 1 {
				return fmt.Errorf("--members must be at least 1")
			}
			if leaker < 0 || leaker > members {
				return fmt.Errorf("--leaker must be between 0 and %d", members)
			}

			cfg, log, err := loadApp()
			if err != nil {
				return err
			}

			platform := newSimPlatform(members, leaker, delay)
			sessionCfg := hunt.SessionConfig{
				Platform:       platform,
				GuildID:        simGuild,
				RoleIDs:        []string{simRole},
				LeakChannelID:  simLeak,
				ProbeChannelID: simChannel,
				ProbeTemplate:  cfg.Hunt.ProbeTemplate,
				ObserveTimeout: hunt.TimeoutFromSeconds(timeout),
				SettleDelay:    50 * time.Millisecond,
			}
			if err := sessionCfg.Validate(); err != nil {
				return err
			}

			store, err := common.NewHistoryStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := printer{w: cmd.OutOrStdout(), json: jsonOut}
			if err := huntOnce(ctx, log, sessionCfg, store, out); err != nil {
				return err
			}
			if drifted := platform.Drifted(); len(drifted) > 0 {
				return fmt.Errorf("roles not restored for %v", drifted)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&members, "members", 16, "number of simulated members")
	cmd.Flags().IntVar(&leaker, "leaker", 1, "1-based position of the leaker, 0 for none")
	cmd.Flags().DurationVar(&delay, "delay", 200*time.Millisecond, "how long the leaker takes to forward")
	cmd.Flags().IntVar(&timeout, "timeout", 2, "seconds to wait for a leak per round")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print PROGRESS: and RESULT: json lines")
	return cmd
}

func newSimPlatform(members, leaker int, delay time.Duration) *hunt.MockPlatform {
	cs := make([]hunt.Candidate, members)
	for i := range cs {
		cs[i] = hunt.Candidate{
			ID:          fmt.Sprintf("%d", 100000+i+1),
			Username:    fmt.Sprintf("member%02d", i+1),
			DisplayName: fmt.Sprintf("Member %d", i+1),
			RoleIDs:     []string{simRole},
		}
	}
	p := hunt.NewMockPlatform(cs, []string{simRole}, simLeak)
	p.Account = "simulator"
	p.LeakDelay = delay
	if leaker > 0 {
		p.LeakerID = cs[leaker-1].ID
	}
	return p
}
