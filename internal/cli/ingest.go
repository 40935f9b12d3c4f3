package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/capstore/internal/capture"
	"github.com/roach88/capstore/internal/metrics"
	"github.com/roach88/capstore/internal/traffic"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Metrics bool
}

// IngestResult is the ingest command payload.
type IngestResult struct {
	Added   int                `json:"added"`
	Total   int                `json:"total"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func (r IngestResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Added %d records (%d stored)", r.Added, r.Total)
	for _, name := range slices.Sorted(maps.Keys(r.Metrics)) {
		fmt.Fprintf(&b, "\n  %s %g", name, r.Metrics[name])
	}
	return b.String()
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Add records from an NDJSON file",
		Long: `Read records (one JSON object per line) and add them through the
capture store, exactly as the capture pipeline does: each record goes to the
memory cache and the background writer, which enforces
persistence.max_persisted_records. Use "-" to read stdin.

Age-based retention is not applied while ingesting, so old captures are
stored as given; run "capstore prune" afterwards to apply retention_days.

Examples:
  capstore ingest captures.ndjson
  capstore export | capstore ingest --db other.db -
  capstore ingest captures.ndjson --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print store metrics after ingesting")
	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command, path string) (err error) {
	ctx := context.Background()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	// Records must outlive this process, and the startup retention pass
	// must not race the records being ingested.
	cfg.Persistence.Enabled = true
	cfg.Persistence.RetentionDays = 0

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	s, err := traffic.New(cfg, traffic.WithLogger(opts.logger(cmd, cfg)))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "failed to close store", cerr)
		}
	}()

	added := 0
	readErr := capture.ReadNDJSON(in, func(r capture.Record) error {
		s.Add(r)
		added++
		return nil
	})

	// Persist what was read even when the input was cut short.
	if err := s.Flush(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to persist records", err)
	}
	if readErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("ingest stopped after %d records", added), readErr)
	}

	total, err := s.GetTotalCount(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count records", err)
	}

	result := IngestResult{Added: added, Total: total}
	if opts.Metrics {
		if result.Metrics, err = metrics.Snapshot(); err != nil {
			return WrapExitError(ExitFailure, "failed to read metrics", err)
		}
	}
	opts.formatter(cmd).VerboseLog("ingested %d records into %s", added, cfg.DatabaseFile())
	return opts.formatter(cmd).Success(result)
}
