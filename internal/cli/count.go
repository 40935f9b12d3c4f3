package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// CountResult is the count command payload.
type CountResult struct {
	Total    int    `json:"total"`
	Database string `json:"database"`
}

func (r CountResult) String() string {
	return fmt.Sprintf("%d records in %s", r.Total, r.Database)
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count",
		Short:         "Count stored records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, _, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Count(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count records", err)
			}
			return rootOpts.formatter(cmd).Success(CountResult{Total: n, Database: st.Path()})
		},
	}
}
