package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/persona-mcp/internal/analytics"
)

// NewAnalyticsCmd creates the analytics command group.
func NewAnalyticsCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Inspect and manage persona usage analytics",
		Long: `The analytics file records how often each persona is activated and which
context keywords led to each activation. Suggestions use the keyword history
to favor personas that handled similar contexts before.

Commands:
  show    Usage counts and top keywords
  export  Dump the raw analytics record as JSON
  clear   Delete all analytics data
  prune   Keep only the most frequent keywords per persona`,
	}

	cmd.AddCommand(
		newAnalyticsShowCmd(opts),
		newAnalyticsExportCmd(opts),
		newAnalyticsClearCmd(opts),
		newAnalyticsPruneCmd(opts),
	)
	return cmd
}

func newAnalyticsShowCmd(opts *RootOptions) *cobra.Command {
	var top int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show usage counts and top keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				report := analytics.Summarize(app.Analytics.Load(), top)
				out := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				fmt.Fprintln(out, report.Text())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", analytics.DefaultTopKeywords, "Keywords shown per persona")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newAnalyticsExportCmd(opts *RootOptions) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the analytics record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				data, err := analytics.Encode(app.Analytics.Load())
				if err != nil {
					return err
				}
				if outputFile == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(outputFile, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outputFile, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported analytics to %s\n", outputFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newAnalyticsClearCmd(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all analytics data",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "This will delete all analytics data. Continue? (y/N): ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			return withApp(opts, func(app *App) error {
				if err := app.Analytics.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Analytics data cleared")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newAnalyticsPruneCmd(opts *RootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Keep only the most frequent keywords per persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep <= 0 {
				return errors.New("--keep must be positive")
			}
			return withApp(opts, func(app *App) error {
				removed := 0
				err := app.Analytics.Update(func(rec *analytics.Record) error {
					before := keywordTotal(rec)
					rec.PruneKeywords(keep)
					removed = before - keywordTotal(rec)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d keyword(s), keeping at most %d per persona\n", removed, keep)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&keep, "keep", "k", 50, "Keywords retained per persona")
	return cmd
}

func keywordTotal(rec *analytics.Record) int {
	n := 0
	for _, patterns := range rec.ContextPatterns {
		n += len(patterns)
	}
	return n
}
