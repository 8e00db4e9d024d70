package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func addImport(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the document with a JSON document; '-' reads stdin",
		Example: `
tables export budget.json
tables import --key copy budget.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			_, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.Import(data); err != nil {
				return err
			}
			if _, err := s.Save(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", args[0], s.Key())
			return err
		},
	}

	topLevel.AddCommand(cmd)
}

func addExport(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the document without its history as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, cleanup, err := o.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := s.Export()
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')

			if len(args) == 0 || args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(out.Bytes())
				return err
			}
			return os.WriteFile(args[0], out.Bytes(), 0o644)
		},
	}

	topLevel.AddCommand(cmd)
}
