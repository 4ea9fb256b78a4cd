package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/persona-mcp/internal/learning"
)

const day = 24 * time.Hour

// NewHistoryCmd creates the history command group.
func NewHistoryCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the activation history database",
		Long: `Every persona activation and suggestion query is recorded in a local
SQLite database (paths.historyDB). Contexts are stored only as SHA-256
hashes. Set history.enabled=false or PERSONA_HISTORY=false to turn it off.

Commands:
  recent    Latest activations or suggestions
  trending  Personas ranked by recent frequency and recency
  cleanup   Delete entries older than the retention period`,
	}

	cmd.AddCommand(
		newHistoryRecentCmd(opts),
		newHistoryTrendingCmd(opts),
		newHistoryCleanupCmd(opts),
	)
	return cmd
}

func newHistoryRecentCmd(opts *RootOptions) *cobra.Command {
	var limit int
	var suggestions bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest activations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				db, err := app.OpenHistory()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if suggestions {
					recs, err := db.RecentSuggestions(limit)
					if err != nil {
						return err
					}
					if jsonOutput {
						return encodeJSON(cmd, recs)
					}
					if len(recs) == 0 {
						fmt.Fprintln(out, "No suggestions recorded.")
						return nil
					}
					for _, r := range recs {
						name := r.Persona
						if name == "" {
							name = "(no match)"
						}
						fmt.Fprintf(out, "%s  %-20s %3.0f%%  %s\n",
							r.Timestamp.Local().Format(time.DateTime), name, r.Confidence*100, shortHash(r.ContextHash))
					}
					return nil
				}

				acts, err := db.RecentActivations(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return encodeJSON(cmd, acts)
				}
				if len(acts) == 0 {
					fmt.Fprintln(out, "No activations recorded.")
					return nil
				}
				for _, a := range acts {
					fmt.Fprintf(out, "%s  %-20s %-15s %s\n",
						a.Timestamp.Local().Format(time.DateTime), a.Persona, a.Source, shortHash(a.ContextHash))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries")
	cmd.Flags().BoolVar(&suggestions, "suggestions", false, "Show suggestion queries instead of activations")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newHistoryTrendingCmd(opts *RootOptions) *cobra.Command {
	var days int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Rank personas by recent usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			return withApp(opts, func(app *App) error {
				db, err := app.OpenHistory()
				if err != nil {
					return err
				}
				scores, err := learning.RankTrending(db, time.Duration(days)*day)
				if err != nil {
					return err
				}
				if jsonOutput {
					return encodeJSON(cmd, scores)
				}

				out := cmd.OutOrStdout()
				if len(scores) == 0 {
					fmt.Fprintf(out, "No activations in the last %d day(s).\n", days)
					return nil
				}
				fmt.Fprintf(out, "Trending personas (last %d day(s)):\n\n", days)
				for i, s := range scores {
					fmt.Fprintf(out, "%2d. %-20s score %.2f  %d activation(s), last %s\n",
						i+1, s.Persona, s.Score, s.Activations, s.LastUsed.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", int(learning.DefaultTrendingWindow/day), "Window in days")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newHistoryCleanupCmd(opts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				retention := days
				if !cmd.Flags().Changed("days") {
					retention = app.Config.History.RetentionDays
				}
				if retention <= 0 {
					return errors.New("retention must be a positive number of days")
				}

				db, err := app.OpenHistory()
				if err != nil {
					return err
				}
				if err := db.Cleanup(time.Duration(retention) * day); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed history older than %d day(s)\n", retention)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Retention in days (default history.retentionDays)")
	return cmd
}

func encodeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
