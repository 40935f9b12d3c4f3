package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Limit  int
	Offset int
	Method string
	Status string // "200" or "200-299"
	URL    string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records, newest first",
		Long: `List records from the durable store, newest first.

At most one of --method, --status and --url may be given.

Examples:
  capstore list --limit 20
  capstore list --limit 20 --offset 40
  capstore list --method POST
  capstore list --status 500-599
  capstore list --url /api/users --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum records to show (0 = all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip (unfiltered listing only)")
	cmd.Flags().StringVar(&opts.Method, "method", "", "only records with this HTTP method")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only records with this status code or range (e.g. 404, 400-499)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "only records whose URL contains this text")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	selectors := 0
	for _, s := range []string{opts.Method, opts.Status, opts.URL} {
		if s != "" {
			selectors++
		}
	}
	if selectors > 1 {
		return NewExitError(ExitCommandError, "use at most one of --method, --status, --url")
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return NewExitError(ExitCommandError, "--limit and --offset must not be negative")
	}
	if opts.Offset > 0 && selectors > 0 {
		return NewExitError(ExitCommandError, "--offset only applies to unfiltered listings")
	}

	st, _, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := listRecords(ctx, st, opts)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Records(records)
}

func listRecords(ctx context.Context, st *store.Store, opts *ListOptions) ([]capture.Record, error) {
	var (
		records []capture.Record
		err     error
	)
	switch {
	case opts.Method != "":
		records, err = st.FilterByMethod(ctx, opts.Method, opts.Limit)
	case opts.Status != "":
		minStatus, maxStatus, perr := parseStatusRange(opts.Status)
		if perr != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --status", perr)
		}
		records, err = st.FilterByStatusRange(ctx, minStatus, maxStatus, opts.Limit)
	case opts.URL != "":
		records, err = st.SearchByURLSubstring(ctx, opts.URL, opts.Limit)
	default:
		records, err = st.Page(ctx, opts.Offset, opts.Limit)
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to list records", err)
	}
	return records, nil
}

// parseStatusRange accepts "404" or "400-499".
func parseStatusRange(s string) (int, int, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	minStatus, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("bad status %q", lo)
	}
	if !isRange {
		return minStatus, minStatus, nil
	}
	maxStatus, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("bad status %q", hi)
	}
	if maxStatus < minStatus {
		return 0, 0, fmt.Errorf("range %d-%d is empty", minStatus, maxStatus)
	}
	return minStatus, maxStatus, nil
}
