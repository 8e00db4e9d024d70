package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csicar/tables/internal/core/forest"
	"github.com/csicar/tables/internal/editor"
	"github.com/csicar/tables/internal/injector"
)

func addSet(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "set NAME EXPR...",
		Short: "Set the expression of a page, adding the page if needed",
		Example: `
tables set rent 1200
tables set total rent + food
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			name, code := args[0], strings.Join(args[1:], " ")
			if name == "" {
				return fmt.Errorf("page name is empty")
			}
			editor.SetPage(s, app.Block, app.Evaluator, name, code)
			if _, err := s.Save(cmd.Context()); err != nil {
				return err
			}
			return printPage(cmd, app, s, name)
		},
	}

	topLevel.AddCommand(cmd)
}

// printPage prints the result of the top-level page called name.
func printPage(cmd *cobra.Command, app *injector.App, s *editor.DocumentSession, name string) error {
	d := s.State()
	path, ok := editor.FindPage(d, name)
	if !ok {
		return fmt.Errorf("no page %q", name)
	}
	page, _ := forest.At(d.Pages, path)
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", name, formatValue(editor.Pages(app.Block).Inner.Result(page.State)))
	return err
}
