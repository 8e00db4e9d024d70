package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func addHistory(topLevel *cobra.Command, o *Options) {
	restore := -1

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the retained states of the document, or restore one",
		Example: `
tables history
tables history --restore 0
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries := s.History()
			if restore < 0 {
				out := cmd.OutOrStdout()
				for i, e := range entries {
					prev := "-"
					if !e.Prev.IsZero() {
						prev = e.Prev.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%3d  %s  restored-from=%s\n", i, e.Time.Format(time.RFC3339), prev)
				}
				return nil
			}

			latest := len(entries) - 1
			if restore > latest {
				return fmt.Errorf("no entry %d, the latest is %d", restore, latest)
			}
			if restore == latest {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "entry %d is already the latest\n", restore)
				return err
			}
			// Opening views the entry before the latest.
			s.OpenHistory()
			s.MoveHistory(restore - (latest - 1))
			s.RestoreHistory()
			if _, err := s.Save(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "restored entry %d\n", restore)
			return err
		},
	}
	cmd.Flags().IntVar(&restore, "restore", -1, "Make the entry at this index the latest state.")

	topLevel.AddCommand(cmd)
}
