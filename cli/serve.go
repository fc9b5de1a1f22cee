package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"contact-metrics/engine"
	"contact-metrics/server"
	"contact-metrics/storage"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Long: `Start the HTTP service.

Endpoints:
  POST /api/reports                  compute a report from a CSV body
  GET  /api/agents/{agentId}/history persisted capacity rows of an agent
  GET  /metrics                      Prometheus metrics
  GET  /health                       liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}

			settings, err := engine.SettingsFromConfig(a.cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := storage.NewStore(ctx, a.logger)
			if err != nil {
				return err
			}

			a.logger.Info().
				Str("port", a.cfg.Port).
				Strs("allowed_origins", a.cfg.AllowedOrigins).
				Str("log_level", a.cfg.LogLevel).
				Msg("starting contact-metrics server")

			srv := server.New(engine.New(settings, a.logger), store, a.cfg, a.logger)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default $PORT)")
	return cmd
}
