package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record in full",
		Long: `Show a stored record with its headers and bodies.

Examples:
  capstore show 0195a3c2-7f10-7c3e-9a51-2b8d4e6f0a11
  capstore show 0195a3c2-7f10-7c3e-9a51-2b8d4e6f0a11 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command, id string) error {
	ctx := context.Background()

	st, _, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	r, ok, err := st.GetByID(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read record", err)
	}
	if !ok {
		_ = opts.formatter(cmd).Error("E404", "record not found: "+id, nil)
		return NewExitError(ExitFailure, "record not found: "+id)
	}
	return opts.formatter(cmd).Record(r)
}
