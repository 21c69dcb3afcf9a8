package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/observability"
	"github.com/basecamp/storefront/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve server-rendered storefront pages",
		Long: `Serve storefront pages over HTTP. Each page embeds the intents it
resolved so the browser client can take over without fetching them again.

Prometheus metrics are served at /metrics. Set otel_endpoint to export traces.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			if addr == "" {
				addr = app.Config.ListenAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := observability.SetupTracing(ctx, app.Config.OTELEndpoint)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					app.Logger.Warn("trace flush failed", "error", err)
				}
			}()

			srv := server.New(app.NewJet(nil), server.Options{
				Addr:    addr,
				Logger:  app.Logger,
				Metrics: app.Metrics.Handler(),
			})
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from listen_addr)")

	return cmd
}
