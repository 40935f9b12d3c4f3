package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/capstore/internal/capture"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records to stdout as NDJSON",
		Long: `Write stored records to stdout, one JSON object per line, newest first.
The output can be loaded again with "capstore ingest".

Examples:
  capstore export > captures.ndjson
  capstore export --limit 100`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}

			st, _, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.GetAll(ctx, limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read records", err)
			}
			if err := capture.WriteNDJSON(cmd.OutOrStdout(), records); err != nil {
				return WrapExitError(ExitFailure, "failed to write records", err)
			}
			rootOpts.formatter(cmd).VerboseLog("exported %d records", len(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records to export (0 = all)")
	return cmd
}
