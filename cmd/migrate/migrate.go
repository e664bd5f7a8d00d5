package migrate

import (
	"fmt"

	"nearmiss-dashboard/core/appbootstrap"

	"github.com/spf13/cobra"
)

func Command(ctx *appbootstrap.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := appbootstrap.Migrate(cmd.Context(), ctx.Config, ctx.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
