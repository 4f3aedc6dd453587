package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

type scrapeFlags struct {
	url    string
	cookie string
	user   string
}

func newScrapeCmd() *cobra.Command {
	var flags scrapeFlags
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one export and prints the JSON response",
		Long: `Runs the full pipeline once for --user without going through HTTP or
token verification. The session is saved exactly as the API would.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrapeCommand(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.url, "url", "", "Sales Navigator search URL")
	cmd.Flags().StringVar(&flags.cookie, "cookie", "", "LinkedIn li_at session cookie")
	cmd.Flags().StringVar(&flags.user, "user", "", "user id the session is saved under")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("cookie")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, flags scrapeFlags) error {
	return withApp(cmd, func(app App) (err error) {
		defer func() {
			err = errors.Join(err, app.Close(cmd.Context()))
		}()

		resp, err := app.Scrape(cmd.Context(), scrape.Request{
			UserID:        flags.user,
			SearchURL:     flags.url,
			SessionCookie: flags.cookie,
		})
		if err != nil {
			return fmt.Errorf("scrape failed (%s): %w", scrape.KindOf(err), err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		return nil
	})
}
