package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pipeboard/internal/httpapi"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP",
		Long: `Serve the board HTTP API until interrupted.

Mutations are persisted in the background according to sync_strategy and,
when amqp.url is set, published to RabbitMQ. On SIGINT or SIGTERM the server
drains requests and flushes pending work before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}

			runErr := serve(ctx, a)
			if err := a.close(ctx); err != nil {
				a.logger.Error("final flush failed", zap.Error(err))
				if runErr == nil {
					return sysError(fmt.Errorf("persist board: %w", err))
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr from config)")
	return cmd
}

// serve runs the HTTP server and the dispatcher loop until ctx is done or
// the listener fails.
func serve(ctx context.Context, a *app) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &http.Server{
		Addr: a.cfg.GetHTTPAddr(),
		Handler: httpapi.New(httpapi.Options{
			Engine:         a.engine,
			Tags:           a.cfg.Tags,
			AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
			Version:        Version,
			Checks:         healthChecks(a),
			Logger:         a.logger,
			Registry:       reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.dispatcher.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", a.cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return sysError(fmt.Errorf("listen: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// healthChecks reports the backend connection when the backend can be
// pinged, and the broker connection when one is configured.
func healthChecks(a *app) map[string]httpapi.Check {
	checks := map[string]httpapi.Check{}
	if p, ok := a.backend.(pinger); ok {
		checks[a.cfg.Backend] = p.Ping
	}
	if a.broker != nil {
		broker := a.broker
		checks["rabbitmq"] = func(context.Context) error {
			if broker.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}
