package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addCompact(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Thin out the history of the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			before := len(s.History())
			s.Compact()
			if _, err := s.Save(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d entries\n", len(s.History()), before)
			return err
		},
	}

	topLevel.AddCommand(cmd)
}
