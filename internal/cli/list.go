package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/persona-mcp/internal/persona"
)

// NewListCmd creates the 'list' command for listing saved personas.
func NewListCmd(opts *RootOptions) *cobra.Command {
	var jsonOutput bool
	var community bool
	var category string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved personas",
		Long:    `Display the personas saved in the persona directory, or the community collection with --community.`,
		Example: `  persona-mcp list
  persona-mcp ls --json
  persona-mcp list --community --category development`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				out := cmd.OutOrStdout()
				if community {
					return listCommunity(cmd, app, category, jsonOutput)
				}

				names, err := app.Personas.Names()
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(names)
				}
				if len(names) == 0 {
					fmt.Fprintln(out, "No saved personas.")
					fmt.Fprintln(out, "Run 'persona-mcp create <name>' to add one.")
					return nil
				}

				fmt.Fprintf(out, "Personas (%d):\n\n", len(names))
				for _, name := range names {
					fmt.Fprintf(out, "  %s\n", name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&community, "community", false, "List the community collection instead")
	cmd.Flags().StringVar(&category, "category", "", "Filter community personas by category")

	return cmd
}

func listCommunity(cmd *cobra.Command, app *App, category string, jsonOutput bool) error {
	out := cmd.OutOrStdout()

	all, err := app.Community.List()
	if err != nil {
		return err
	}
	list := persona.FilterByCategory(all, category)

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No community personas found.")
		return nil
	}

	fmt.Fprintf(out, "Community personas (%d):\n\n", len(list))
	for _, p := range list {
		fmt.Fprintf(out, "  %s [%s]\n", p.Name, p.Category())
		if desc := p.Metadata["description"]; desc != "" {
			fmt.Fprintf(out, "    %s\n", desc)
		}
	}
	return nil
}
