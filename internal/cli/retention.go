package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// DeleteResult is the payload of the prune, trim and clear commands.
type DeleteResult struct {
	Deleted int64  `json:"deleted"`
	Reason  string `json:"reason"`
}

func (r DeleteResult) String() string {
	return fmt.Sprintf("Deleted %d records (%s)", r.Deleted, r.Reason)
}

// now is the clock used by prune; replaced in tests.
var now = time.Now

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than the retention window",
		Long: `Delete durable records older than N days. Without --days the
configured persistence.retention_days is used; a retention of 0 disables
pruning.

Examples:
  capstore prune
  capstore prune --days 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, cfg, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if !cmd.Flags().Changed("days") {
				days = cfg.Persistence.RetentionDays
			}
			if days < 0 {
				return NewExitError(ExitCommandError, "--days must not be negative")
			}

			out := rootOpts.formatter(cmd)
			if days == 0 {
				return out.Success(DeleteResult{Reason: "retention disabled"})
			}

			cutoff := now().Add(-time.Duration(days) * 24 * time.Hour)
			n, err := st.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to prune records", err)
			}
			return out.Success(DeleteResult{
				Deleted: n,
				Reason:  fmt.Sprintf("older than %s", cutoff.UTC().Format(time.RFC3339)),
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default: from config)")
	return cmd
}

// NewTrimCommand creates the trim command.
func NewTrimCommand(rootOpts *RootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Keep only the most recent records",
		Long: `Delete all but the N most recent durable records. Without --keep the
configured persistence.max_persisted_records is used.

Examples:
  capstore trim
  capstore trim --keep 500`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, cfg, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if !cmd.Flags().Changed("keep") {
				keep = cfg.Persistence.MaxPersistedRecords
			}
			if keep < 0 {
				return NewExitError(ExitCommandError, "--keep must not be negative")
			}

			n, err := st.TrimToMostRecent(ctx, keep)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to trim records", err)
			}
			return rootOpts.formatter(cmd).Success(DeleteResult{
				Deleted: n,
				Reason:  fmt.Sprintf("keeping newest %d", keep),
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "records to keep (default: from config)")
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Delete every stored record",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear without --yes")
			}

			st, _, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.DeleteAll(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to clear records", err)
			}
			return rootOpts.formatter(cmd).Success(DeleteResult{Deleted: n, Reason: "clear"})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all records")
	return cmd
}
