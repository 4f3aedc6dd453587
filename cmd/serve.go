package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP API",
		Long: `Serves POST /scrape and the operational endpoints until SIGINT or
SIGTERM, then drains in-flight requests.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Run closes the app during shutdown.
			return withApp(cmd, func(app App) error {
				return app.Run(cmd.Context())
			})
		},
	}
}
