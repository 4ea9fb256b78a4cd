package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewCreateCmd creates the 'create' command for saving a persona.
func NewCreateCmd(opts *RootOptions) *cobra.Command {
	var content string
	var file string
	var force bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create or replace a persona",
		Long: `Save a persona prompt under the given name.

The prompt is taken from --content, from --file, or from stdin when neither
flag is set. Names may contain letters, digits, '-' and '_'.`,
		Example: `  persona-mcp create teacher --content "You explain concepts step by step."
  persona-mcp create reviewer --file reviewer.txt
  cat coder.txt | persona-mcp create coder`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if content != "" && file != "" {
				return errors.New("--content and --file are mutually exclusive")
			}

			text := content
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				text = string(data)
			case content == "":
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			return withApp(opts, func(app *App) error {
				if app.Personas.Exists(name) && !force {
					return fmt.Errorf("persona %q already exists (use --force to replace it)", name)
				}
				path, err := app.Personas.Save(name, text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved persona '%s' to %s\n", name, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "Persona prompt text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the persona prompt from a file")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing persona")

	return cmd
}

// NewDeleteCmd creates the 'delete' command for removing a persona.
func NewDeleteCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a persona",
		Long:    `Remove a persona file. Its usage analytics are kept.`,
		Example: `  persona-mcp delete teacher
  persona-mcp rm teacher`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withApp(opts, func(app *App) error {
				if err := app.Personas.Delete(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted persona '%s'\n", name)
				return nil
			})
		},
	}

	return cmd
}
