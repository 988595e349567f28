package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/stowfront/config"
	stowhttp "github.com/sagarc03/stowfront/http"
	"github.com/sagarc03/stowfront/respcache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the stowfront HTTP server.

The first request authorizes against the backend unless a usable credential
is already in the credential store.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8787, "HTTP server port")
	serveCmd.Flags().String("bucket", "", "bucket to serve (env: STOWFRONT_BACKEND_BUCKET)")
	serveCmd.Flags().String("key-file", "", "JSON file holding key_id and application_key")
	serveCmd.Flags().String("cache-type", "", "response cache: none, memory, redis")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, client, store, err := openManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cache, err := respcache.New(ctx, cfg.Cache.Config)
	if err != nil {
		return fmt.Errorf("open response cache: %w", err)
	}
	defer func() { _ = cache.Close() }()
	slog.Info("response cache ready", "type", cfg.Cache.Type)

	opts := []stowhttp.HandlerOption{stowhttp.WithCache(cache)}
	if cfg.Metrics.Enabled {
		opts = append(opts, stowhttp.WithMetrics(stowhttp.NewMetrics(prometheus.DefaultRegisterer)))
	}

	handler := stowhttp.NewHandler(&stowhttp.HandlerConfig{
		CORS:              cfg.CORS,
		MaxCacheBodyBytes: cfg.Cache.MaxBodyBytes,
		CanonicalHost:     cfg.Server.CanonicalHost,
		AliasHosts:        cfg.Server.AliasHosts,
	}, manager, client, opts...)

	servers := []*http.Server{newServer(cfg, fmt.Sprintf(":%d", cfg.Server.Port), handler.Router())}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, newServer(cfg, cfg.Metrics.Addr, mux))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Credentials.RefreshInterval > 0 {
		g.Go(func() error {
			manager.RunRefresher(gctx, cfg.Credentials.RefreshInterval)
			return nil
		})
	}

	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("starting server", "addr", srv.Addr, "bucket", client.BucketName())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("server shutdown error", "addr", srv.Addr, "err", err)
			}
		}
		return nil
	})

	err = g.Wait()

	handler.Wait()
	manager.Wait()

	return err
}

func newServer(cfg *config.Config, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
