package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/api"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/review"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	var shuffle bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review session over HTTP",
		Long: `Serve the review session and annotation store over a JSON HTTP API.
Batches are uploaded with POST /api/batches?name=<name>; operator events are
posted to /api/session/*. The store is flushed every flush interval and once
more on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = &listen
			}
			if cmd.Flags().Changed("shuffle") {
				cfg.Shuffle = &shuffle
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, b, err := a.openStore(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctrl := review.NewController(review.ControllerConfig{
				Store:      store,
				Weather:    a.loadWeather(cfg),
				WindowDays: cfg.GetWindowDays(),
				Shuffle:    cfg.GetShuffle(),
			})
			flusher := annotations.NewFlusher(annotations.FlusherConfig{
				Store:    store,
				Interval: cfg.GetFlushInterval(),
				Logger:   monitoring.NewLogger(""),
			})

			srvCfg := api.Config{
				Controller: ctrl,
				Flusher:    flusher,
				Logger:     monitoring.NewLogger(""),
			}
			if b.sqlite != nil {
				srvCfg.AdminRoutes = b.sqlite.AttachAdminRoutes
			}
			handler, err := api.NewServer(srvCfg).Handler()
			if err != nil {
				return a.out.Error("Failed to build HTTP routes", err.Error(), nil)
			}

			return a.serve(ctx, cfg.GetListen(), handler, flusher)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle each uploaded batch")
	return cmd
}

// serve listens on addr and runs the server until ctx is cancelled.
func (a *app) serve(ctx context.Context, addr string, handler http.Handler, flusher *annotations.Flusher) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return a.out.Error("Failed to start server", err.Error(), []string{
			fmt.Sprintf("Check that nothing else is listening on %s", addr),
		})
	}
	return a.serveListener(ctx, ln, handler, flusher)
}

// serveListener runs the HTTP server and the flusher until ctx is cancelled.
// The server is drained before the flusher stops, so an event accepted during
// shutdown is covered by the final flush.
func (a *app) serveListener(ctx context.Context, ln net.Listener, handler http.Handler, flusher *annotations.Flusher) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	flushCtx, stopFlusher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopFlusher()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return flusher.Run(flushCtx)
	})
	g.Go(func() error {
		a.out.Step("Listening on %s\n", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopFlusher()
		<-gctx.Done()
		monitoring.Logf("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return a.out.Error("Server stopped with an error", err.Error(), nil)
	}
	a.out.Success("Graceful shutdown complete\n")
	return nil
}
