package main

import (
	"context"
	"net/http"

	"github.com/cyberfolio/folio-core/env"
	"github.com/cyberfolio/folio-core/server"
	"github.com/cyberfolio/folio-core/telemetry"
	"github.com/cyberfolio/folio-core/ticker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and keep the price board warm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			secure, _ := cmd.Flags().GetBool("secure-cookie")
			ctx := cmd.Context()

			shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.WithoutCancel(ctx))

			log, shutdownLogs, err := telemetry.InitLogging(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, log, env.LogLevel(cmd))
			if err != nil {
				return err
			}
			defer shutdownLogs(context.WithoutCancel(ctx))

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			poller := ticker.NewPoller(log, a.prices, cfg.Ticker.Interval.D(), func(s ticker.Snapshot) {
				log.Debug("price board refreshed with %d quotes", len(s.Quotes))
			}, ticker.WithIdleTimeout(cfg.Ticker.IdleTimeout.D()))
			handler := server.New(log, a.prices, a.contact,
				server.WithSecureCookie(secure),
				server.WithPriceWatcher(poller.Touch),
			)
			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler.Routes(),
				ReadTimeout:  cfg.Server.ReadTimeout.D(),
				WriteTimeout: cfg.Server.WriteTimeout.D(),
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Serve(gctx, log, srv, cfg.Server.ShutdownTimeout.D())
			})
			g.Go(func() error {
				return poller.Run(gctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides server.addr")
	cmd.Flags().Bool("secure-cookie", false, "mark the visitor cookie Secure")
	return cmd
}
