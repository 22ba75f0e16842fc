package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tunekit/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

// newMetricsHandler 暴露 Prometheus 指标与健康检查。
func newMetricsHandler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func newServeMetricsCmd(c *cli) *cobra.Command {
	var (
		addr    string
		consume bool
	)
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics, optionally while consuming feedback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Metrics.Addr
			}
			if addr == "" {
				addr = ":9090"
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newMetricsHandler(c.cfg.Metrics.Path),
				ReadHeaderTimeout: 5 * time.Second,
			}
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				c.logger.Info("metrics server listening",
					logging.String("addr", addr),
					logging.String("path", c.cfg.Metrics.Path))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if consume {
				eg.Go(func() error {
					return c.withApp(ctx, func(a *app) error {
						return c.consumeFeedback(ctx, a)
					})
				})
			}
			return eg.Wait()
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address, overrides metrics.addr")
	f.BoolVar(&consume, "consume", false, "also run the Kafka feedback consumer")
	return cmd
}
