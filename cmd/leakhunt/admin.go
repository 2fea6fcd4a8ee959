package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flashbots/leakhunt/cmd/common"
	"github.com/flashbots/leakhunt/config"
	"github.com/flashbots/leakhunt/discord"
	"github.com/flashbots/leakhunt/services"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the token and proxy by fetching the account name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp()
			if err != nil {
				return err
			}
			client, err := discord.New(cfg.DiscordClientConfig(log))
			if err != nil {
				return err
			}
			name, err := client.Whoami(cmd.Context())
			if err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CONNECTED:%s\n", name)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recorded sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadApp()
			if err != nil {
				return err
			}
			store, err := common.NewHistoryStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := store.GetSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSession(printer{w: out}, rec)
				return nil
			}

			recs, err := store.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tGUILD\tPHASE\tROUNDS\tLEAKER")
			for _, rec := range recs {
				leaker := "-"
				if rec.Result != nil {
					leaker = rec.Result.Candidate.Name()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					rec.ID, rec.StartedAt.Local().Format(time.DateTime), rec.GuildID, rec.Phase, len(rec.Rounds), leaker)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to list")
	return cmd
}

func printSession(p printer, rec *services.SessionRecord) {
	colorCyan.Fprintf(p.w, "Session %s", rec.ID)
	fmt.Fprintf(p.w, " guild %s, %s", rec.GuildID, rec.Phase)
	if rec.Stopped {
		colorYellow.Fprint(p.w, " (stopped)")
	}
	fmt.Fprintln(p.w)
	for _, r := range rec.Rounds {
		kind := "round"
		if r.Confirmation {
			kind = "confirm"
		}
		fmt.Fprintf(p.w, "  %-7s %2d  %3d tested  verdict %-12s %s\n",
			kind, r.Step, len(r.CandidateNames), r.Verdict, r.Direction)
	}
	if rec.Error != "" {
		colorRed.Fprintf(p.w, "  error in round %d: %s\n", rec.ErrorRound, rec.Error)
	}
	p.result(rec.Result)
}

func initConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a config file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "leakhunt.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteSample(path, force); err != nil {
				return err
			}
			colorGreen.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
