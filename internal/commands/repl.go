package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csicar/tables/internal/editor"
	"github.com/csicar/tables/internal/injector"
)

func addRepl(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit the document line by line",
		Long: `Reads edits from stdin, one per line:

  NAME = EXPR   set the expression of a page
  show          print the document
  undo          restore the state before the latest one

The document is saved every autosave.interval and when input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithCancel(cmd.Context())
			done := make(chan error, 1)
			go func() {
				done <- app.Workspace.Run(ctx, app.Config.Autosave.Interval)
			}()

			err = repl(cmd, app, s)
			cancel()
			if runErr := <-done; err == nil {
				err = runErr
			}
			return err
		},
	}

	topLevel.AddCommand(cmd)
}

func repl(cmd *cobra.Command, app *injector.App, s *editor.DocumentSession) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case line == "show":
			printDocument(cmd.OutOrStdout(), editor.Pages(app.Block), s.State())
		case line == "undo":
			s.OpenHistory()
			s.RestoreHistory()
		default:
			name, code, ok := strings.Cut(line, "=")
			name, code = strings.TrimSpace(name), strings.TrimSpace(code)
			if !ok || name == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "cannot parse %q, expected NAME = EXPR\n", line)
				continue
			}
			editor.SetPage(s, app.Block, app.Evaluator, name, code)
			if err := printPage(cmd, app, s, name); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
