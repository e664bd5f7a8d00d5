package seed

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"nearmiss-dashboard/core/appbootstrap"
	"nearmiss-dashboard/core/incidents"

	"github.com/spf13/cobra"
)

type options struct {
	file      string
	truncate  bool
	batchSize int
}

// Command imports a JSON array of raw incident records.
func Command(ctx *appbootstrap.Context) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import incidents from a JSON file",
		Long:  `Import a JSON array of raw incident records (snake_case keys, epoch-millisecond dates). Use "-" to read from stdin.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "data/incidents.json", "Path to the JSON file")
	cmd.Flags().BoolVar(&opts.truncate, "truncate", false, "Delete all incidents before importing")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Records per transaction (defaults to the configured seed batch size)")
	return cmd
}

func run(cmd *cobra.Command, ctx *appbootstrap.Context, opts options) error {
	var in io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		in = f
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	app, err := appbootstrap.Open(runCtx, ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Seed(runCtx, in, incidents.SeedOptions{Truncate: opts.truncate, BatchSize: opts.batchSize})
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "read=%d inserted=%d skipped=%d\n", res.Read, res.Inserted, res.Skipped)
	}
	return err
}
