package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cyberfolio/folio-core/ticker"
	"github.com/cyberfolio/folio-core/tui"
	"github.com/spf13/cobra"
)

func newPricesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show the crypto price board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			watch, _ := cmd.Flags().GetBool("watch")
			asJSON, _ := cmd.Flags().GetBool("json")
			ctx := cmd.Context()

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			render := func(s ticker.Snapshot) {
				if asJSON {
					json.NewEncoder(out).Encode(s)
					return
				}
				fmt.Fprintln(out, tui.PriceTable(s))
			}

			if !watch {
				var snap ticker.Snapshot
				err := tui.ShowSpinner(ctx, "Fetching prices...", func(ctx context.Context) error {
					var err error
					snap, err = a.prices.Snapshot(ctx)
					return err
				})
				if err != nil {
					return err
				}
				render(snap)
				return nil
			}

			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = cfg.Ticker.Interval.D()
			}
			poller := ticker.NewPoller(log, a.prices, interval, func(s ticker.Snapshot) {
				if asJSON {
					render(s)
					return
				}
				tui.Redraw(out, tui.WatchHeader("folio prices", interval)+"\n"+tui.PriceTable(s))
			})
			return poller.Run(ctx)
		},
	}
	cmd.Flags().Bool("watch", false, "keep refreshing until interrupted")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")
	cmd.Flags().Duration("interval", 0, "refresh interval in watch mode, defaults to ticker.interval")
	return cmd
}
