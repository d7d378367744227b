package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCommand(logger *zerolog.Logger) *cobra.Command {
	var (
		addr      string
		withRedis bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.SocketConfigFromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			opts := []providers.Option{providers.WithRegistry(reg)}
			if withRedis {
				opts = append(opts, providers.WithRedis(config.RedisConfigFromEnv()))
			}

			srv := providers.NewServer(cfg, *logger, opts...)
			srv.Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SOCKET_ADDR)")
	cmd.Flags().BoolVar(&withRedis, "redis", true, "relay threads across instances through Redis when reachable")
	return cmd
}
