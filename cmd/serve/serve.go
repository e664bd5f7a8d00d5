package serve

import (
	"os"
	"os/signal"
	"syscall"

	"nearmiss-dashboard/core/appbootstrap"

	"github.com/spf13/cobra"
)

// Command runs the HTTP API until SIGINT or SIGTERM.
func Command(ctx *appbootstrap.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				ctx.Config.ListenAddr = listen
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := appbootstrap.Open(runCtx, ctx.Config, ctx.Logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve(runCtx)
		},
	}
	cmd.Flags().String("listen", "", "Override the listen address, e.g. :3000")
	return cmd
}
