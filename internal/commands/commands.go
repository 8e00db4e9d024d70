// Package commands implements the tables command line.
package commands

import (
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	o := &Options{}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Named-entry spreadsheet documents with history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	AddDocumentArgs(cmd, o)

	AddCommands(cmd, o)
	return cmd
}

func AddCommands(topLevel *cobra.Command, o *Options) {
	addShow(topLevel, o)
	addSet(topLevel, o)
	addHistory(topLevel, o)
	addCompact(topLevel, o)
	addImport(topLevel, o)
	addExport(topLevel, o)
	addRepl(topLevel, o)
	addList(topLevel, o)
}
