package cmd

import (
	"context"
	"log/slog"

	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/gateway"
	"bookgateway/lib/serviceutil"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP gateway.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := serviceutil.SignalContext()

		otel, err := telemetry.SetupFromEnv(ctx, "bookgateway")
		if err != nil {
			return err
		}
		defer shutdown(cmd.Context(), "telemetry", otel)
		telemetry.InstrumentPerfStats(ctx)

		if !cfg.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := gateway.New(registry, cfg.RequestTimeoutDuration(), telemetry.SlogAPI{}).Handler()
		return serviceutil.StartHttpServer(ctx, cfg.Addr(), handler)
	},
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdown(ctx context.Context, name string, s shutdowner) {
	if err := s.Shutdown(ctx); err != nil {
		slog.Warn("shutdown failed", "component", name, "err", err)
	}
}
