package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csicar/tables/internal/injector"
)

func addList(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.Config()
			if err != nil {
				return err
			}
			app, cleanup, err := injector.InitializeApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			keys, err := app.Workspace.Documents(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}

	topLevel.AddCommand(cmd)
}
