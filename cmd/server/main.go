package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tubelens/core/internal/app"
	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/database"
	"github.com/tubelens/core/internal/pkg/cluster"
	"github.com/tubelens/core/internal/pkg/nativelog"
	"github.com/tubelens/core/internal/pkg/prettylog"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	logger, err := nativelog.NewZapLogger()
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Schema migration runs once, in the master process, before workers fork.
	if !cluster.IsWorker() {
		if err := database.EnsureSchema(cfg); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
	}

	opts := cluster.Options{Enable: cfg.Cluster, Workers: cfg.ClusterWorkers}
	if err := cluster.Run(logger, opts, func() error { return serve(logger, cfg) }); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func serve(logger *zap.Logger, cfg *config.AppConfig) error {
	application, err := app.New(logger, cfg)
	if err != nil {
		return err
	}

	// Clustered workers share one port via SO_REUSEPORT.
	addr := application.Addr()
	ln, err := cluster.ListenTCP(addr, cfg.Cluster)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: application.Router()}

	errCh := make(chan error, 1)
	go func() {
		if cluster.ShouldLogBootstrap() {
			logger.Info("server starting", zap.String("addr", addr), prettylog.StartField())
			logger.Info("dashboard", zap.String("url", "http://localhost"+addr+"/dashboard"), prettylog.ReadyField())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")
	application.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
