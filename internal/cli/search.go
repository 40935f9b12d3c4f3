package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/capstore/internal/capture"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Methods      []string
	StatusGroups []int
	Limit        int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search records by text, method and status group",
		Long: `Search the durable store.

Text matches case-insensitively against URL, bodies and headers. Methods
and status groups narrow the result; status group 0 selects pending and
failed records, 2 selects 2xx and so on.

Examples:
  capstore search token
  capstore search --method POST --method PUT
  capstore search users --status-group 4 --status-group 5`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runSearch(opts, cmd, text)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Methods, "method", nil, "HTTP methods to include (repeatable)")
	cmd.Flags().IntSliceVar(&opts.StatusGroups, "status-group", nil, "status groups to include, 0-9 (repeatable)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum records to show (0 = all)")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command, text string) error {
	ctx := context.Background()

	for _, g := range opts.StatusGroups {
		if g < 0 || g > 9 {
			return NewExitError(ExitCommandError, "--status-group must be between 0 and 9")
		}
	}

	methods := make([]string, len(opts.Methods))
	for i, m := range opts.Methods {
		methods[i] = strings.ToUpper(m)
	}

	st, _, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	f := capture.Filter{Search: text, Methods: methods, StatusGroups: opts.StatusGroups}
	records, err := st.Search(ctx, f, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}
	return opts.formatter(cmd).Records(records)
}
