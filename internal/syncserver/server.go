package syncserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shiftscheduler/config"
	"shiftscheduler/pkg/database"
	"shiftscheduler/pkg/jwt"
	"shiftscheduler/pkg/redis"
)

// Run boots the sync server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully. Redis is optional: a failed connection degrades the token rate
// limit to open rather than refusing to start.
func Run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	dbPath := cfg.Serve.DatabaseFile
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(cfg.Data.Dir, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := database.Open(dbPath, logger)
	if err != nil {
		return err
	}
	if err := Migrate(db, logger); err != nil {
		return fmt.Errorf("migrate server schema: %w", err)
	}

	storage := NewStorage(db, logger)
	if _, err := storage.EnsureAccount(cfg.Serve.Passphrase); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	var rdb *redis.Client
	if cfg.Serve.RedisAddr != "" {
		rdb, err = redis.NewClient(cfg.Serve.RedisAddr, cfg.Serve.RedisPassword, cfg.Serve.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, token rate limit degrades open", zap.Error(err))
			rdb = nil
		}
	}

	jwtMgr := jwt.NewManager(cfg.Serve.JWTSecret, cfg.Serve.TokenTTL)
	h := NewHandler(storage, jwtMgr, logger)
	engine := NewRouter(&cfg.Serve, h, jwtMgr, rdb, logger)

	// nightly tombstone purge
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Serve.PurgeSchedule, func() {
		cutoff := time.Now().Add(-cfg.Serve.TombstoneMaxAge)
		removed, err := storage.PurgeTombstones(cutoff)
		if err != nil {
			logger.Error("tombstone purge failed", zap.Error(err))
			return
		}
		if removed > 0 {
			logger.Info("tombstones purged", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
		}
	}); err != nil {
		return fmt.Errorf("schedule tombstone purge: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Serve.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sync server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Serve.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("sync server stopped")
	return nil
}
