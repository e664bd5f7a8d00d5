package cmd

import (
	"nearmiss-dashboard/cmd/migrate"
	"nearmiss-dashboard/cmd/seed"
	"nearmiss-dashboard/cmd/serve"
	"nearmiss-dashboard/core/appbootstrap"

	"github.com/spf13/cobra"
)

// RootCommand creates the nearmiss CLI with its subcommands.
func RootCommand(ctx *appbootstrap.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nearmiss",
		Short:         "Near-miss incidents dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.Init()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigPath, "config", "c", "", "Path to a yaml config file; environment variables are used when empty")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		serve.Command(ctx),
		migrate.Command(ctx),
		seed.Command(ctx),
	)
	return rootCmd
}
