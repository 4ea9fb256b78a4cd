package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/learning"
	"github.com/khanglvm/persona-mcp/internal/storage"
	"github.com/khanglvm/persona-mcp/internal/suggest"
)

type suggestOutput struct {
	Suggestion *suggest.Suggestion `json:"suggestion"`
	Candidates []candidateOutput   `json:"candidates,omitempty"`
}

type candidateOutput struct {
	suggest.Candidate
	Confidence float64 `json:"confidence"`
}

// NewSuggestCmd creates the 'suggest' command.
func NewSuggestCmd(opts *RootOptions) *cobra.Command {
	var all bool
	var activate bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "suggest <context...>",
		Short: "Suggest the best persona for a context",
		Long: `Score the saved personas against a free-text context and print the best
match with its confidence.

--all prints every persona with a positive score. --activate records an
activation of the suggested persona, the same as reading its resource.`,
		Example: `  persona-mcp suggest "please explain how recursion works"
  persona-mcp suggest --all fix this bug in my code
  persona-mcp suggest --activate --json "review this diff"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			context := strings.Join(args, " ")
			return withApp(opts, func(app *App) error {
				return runSuggest(cmd, app, context, all, activate, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show every scoring persona")
	cmd.Flags().BoolVar(&activate, "activate", false, "Record an activation of the suggested persona")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runSuggest(cmd *cobra.Command, app *App, context string, all, activate, jsonOutput bool) error {
	out := cmd.OutOrStdout()

	names, err := app.Personas.Names()
	if err != nil {
		return err
	}

	// Score once against the history as it was before this invocation.
	suggestion := app.Engine.Suggest(context, names)

	var candidates []candidateOutput
	if all {
		for _, c := range app.Engine.Rank(context, names) {
			candidates = append(candidates, candidateOutput{
				Candidate:  c,
				Confidence: app.Engine.Confidence(c.Score),
			})
		}
	}

	if app.History != nil {
		rec := storage.SuggestionRecord{ContextHash: storage.HashContext(context)}
		if suggestion != nil {
			rec.Persona = suggestion.Persona
			rec.Confidence = suggestion.Confidence
		}
		if err := app.History.RecordSuggestion(rec); err != nil {
			app.Logger.Warn("failed to record suggestion", zap.Error(err))
		}
	}

	if activate && suggestion != nil {
		event := learning.NewActivationEvent(suggestion.Persona, context, storage.SourceCLI)
		if err := app.Tracker.Track(event); err != nil {
			return fmt.Errorf("failed to record activation: %w", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(suggestOutput{Suggestion: suggestion, Candidates: candidates})
	}

	if suggestion == nil {
		fmt.Fprintln(out, "No suitable persona found for this context.")
	} else {
		fmt.Fprintf(out, "Recommended: %s\n", suggestion.Persona)
		fmt.Fprintf(out, "Confidence:  %d%%\n", int(math.Round(suggestion.Confidence*100)))
		fmt.Fprintf(out, "Reason:      %s\n", suggestion.Reason)
		if activate {
			fmt.Fprintln(out, "Activation recorded.")
		}
	}

	if all && len(candidates) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Candidates:")
		for _, c := range candidates {
			fmt.Fprintf(out, "  %-20s score %5.2f  confidence %3d%%\n",
				c.Persona, c.Score, int(math.Round(c.Confidence*100)))
		}
	}
	return nil
}
