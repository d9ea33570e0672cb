package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"carcost/internal/cli"
	apphttp "carcost/internal/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appCtx.Config
			logger := appCtx.Logger

			srv, err := apphttp.NewServer(apphttp.Options{
				Addr:            ":" + cfg.Port,
				Records:         appCtx.Records,
				Reader:          appCtx.Store,
				Metrics:         appCtx.Metrics,
				Hub:             appCtx.Hub,
				Manager:         appCtx.Caches,
				Logger:          logger,
				ResultCacheSize: cfg.ResultCacheSize,
				ResultCacheTTL:  cfg.ResultCacheTTL,
				RateLimit:       cfg.RateLimit,
			})
			if err != nil {
				return err
			}

			parent, stop := context.WithCancel(cmd.Context())
			defer stop()
			ctx, done := cli.GracefulShutdown(parent, logger, cfg.ShutdownTimeout, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
			})

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Starting carcost server", "port", cfg.Port, "backend", cfg.DataBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
					stop()
				}
			}()

			cli.WaitForShutdown(ctx, done)
			select {
			case err := <-serveErr:
				return fmt.Errorf("server on port %s: %w", cfg.Port, err)
			default:
			}
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
}
