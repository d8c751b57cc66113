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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sync2notion/internal/api"
	"sync2notion/internal/config"
	fileutil "sync2notion/internal/file"
	"sync2notion/internal/metrics"
	"sync2notion/internal/task"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload web UI and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func runServe(cfg config.Config) error {
	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("ensure data dir %s: %w", cfg.DataDir, err)
	}
	gin.SetMode(gin.ReleaseMode)

	cache, err := openCache(cfg)
	if err != nil {
		return err
	}
	recorder := metrics.NewRecorder()
	orch, err := buildOrchestrator(cfg, cache, recorder)
	if err != nil {
		return err
	}

	manager := task.NewManager(orch, task.Options{
		DataDir:           cfg.DataDir,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	if err := manager.CleanStaleStaging(); err != nil {
		log.Warn().Err(err).Msg("clean stale staging failed")
	}

	router := api.NewRouter()
	apiHandler := api.NewAPI(manager, cache, recorder.Handler())
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager.SetBaseContext(baseCtx)

	srv := newHTTPServer(cfg.Port, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("api", cfg.APIBaseURL).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		baseCancel()
		return fmt.Errorf("http server failed: %w", err)
	}

	gracefulShutdown(srv, baseCancel, manager, shutdownTimeout)
	return nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// gracefulShutdown stops accepting requests, then cancels running batches
// and waits for their workers.
func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, manager *task.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	if !manager.WaitAll(ctx) {
		log.Warn().Msg("batch workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
