package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/blocks/document"
	"github.com/csicar/tables/internal/core/blocks/selector"
	"github.com/csicar/tables/internal/core/forest"
	"github.com/csicar/tables/internal/editor"
)

func addShow(topLevel *cobra.Command, o *Options) {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the pages of the document and their results",
		Example: `
tables show
tables show --key budget --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if asJSON {
				data, err := s.Export()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			printDocument(cmd.OutOrStdout(), editor.Pages(app.Block), s.State())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the document as JSON.")

	topLevel.AddCommand(cmd)
}

// printDocument writes one line per visible page, indented by depth. The
// open page is marked with '*'.
func printDocument(w io.Writer, pages document.Block[selector.State], d editor.Document) {
	if d.Name != "" {
		fmt.Fprintf(w, "# %s\n", d.Name)
	}
	var walk func(entries []*document.Page[selector.State], parent forest.Path, depth int)
	walk = func(entries []*document.Page[selector.State], parent forest.Path, depth int) {
		for _, p := range entries {
			path := parent.Join(p.ID)
			marker := " "
			if path.Equal(d.Open) {
				marker = "*"
			}
			fmt.Fprintf(w, "%s%s%s = %s\n", marker, strings.Repeat("  ", depth),
				forest.EffectiveName(p), formatValue(pages.Inner.Result(p.State)))
			if p.Collapsed {
				continue
			}
			walk(p.Children, path, depth+1)
		}
	}
	walk(d.Pages, nil, 0)
}

func formatValue(v block.Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case *block.EvaluationError:
		return fmt.Sprint("error: ", v.Err)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}
