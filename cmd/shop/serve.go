package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"guardians-shop/internal/handler"
	"guardians-shop/internal/infrastructure/rcon"
	"guardians-shop/internal/metrics"
)

func serveCmd(configPath *string) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook API and the delivery worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, a, !noWorker)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "serve HTTP only, without the delivery worker")
	return cmd
}

func serve(ctx context.Context, a *app, withWorker bool) error {
	gin.SetMode(gin.ReleaseMode)

	deps := handler.Deps{
		Orders:         a.orderService(),
		Players:        func(ctx context.Context) (int, error) { return rcon.PlayersOnline(ctx, a.rcon) },
		MaxPlayers:     a.cfg.RCON.MaxPlayers,
		Gatherer:       a.registry,
		HTTPMetrics:    metrics.NewHTTPMetrics(a.registry, metricPrefix(a.cfg.ServiceName)),
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		DB:             a.dbHealth,
		Logger:         a.log,
	}

	srv := &http.Server{
		Addr:    a.cfg.HTTP.Addr,
		Handler: handler.NewRouter(deps),
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	var wg sync.WaitGroup
	if withWorker {
		w := a.deliveryWorker()
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(workerCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case serveErr = <-errCh:
		a.log.Error("http server failed", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown incomplete", slog.Any("error", err))
	}

	// A tick in flight finishes its current command first.
	stopWorker()
	wg.Wait()
	a.log.Info("shutdown complete")
	return serveErr
}
