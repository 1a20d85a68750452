// Package cli is the cobra front end. Every command builds the engine, boots
// it through the startup sequence, dispatches the actions it stands for, and
// drains the store before reading state back for display.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftscheduler/config"
	"shiftscheduler/internal/action"
	"shiftscheduler/internal/calendar"
	"shiftscheduler/internal/middleware"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/store"
	"shiftscheduler/pkg/database"
	"shiftscheduler/pkg/logger"
)

const drainTimeout = 30 * time.Second

// App is one fully wired engine instance living for the span of one command.
type App struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	Store    *store.Store
	Repo     *repository.Repository
	Calendar *calendar.FileStore
	Remote   *remote.Client

	db *gorm.DB
}

// newApp wires persistence, calendar, remote and the engine from the loaded
// configuration.
func newApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := database.Open(cfg.Data.DatabasePath(), log)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db, log); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	docs := repository.NewDocumentStore(cfg.Data.DocumentsPath())
	repo := repository.NewRepository(db, docs)

	loc, err := cfg.Data.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}
	cal := calendar.NewFileStore(cfg.Data.CalendarPath(), loc, log)

	// reuse the bearer token from the previous run when one survived
	cp, err := repo.SyncState.Load()
	if err != nil {
		log.Warn("sync checkpoint unreadable, starting clean", zap.Error(err))
		cp = repository.SyncCheckpoint{}
	}
	rem := remote.NewClient(remote.Config{
		BaseURL:    cfg.Sync.URL,
		Passphrase: cfg.Sync.Passphrase,
		Token:      cp.Token,
		Timeout:    cfg.Sync.Timeout,
	}, log)

	seed := model.Settings{
		UserID:        uuid.NewString(),
		UserName:      cfg.Profile.UserName,
		RetentionDays: cfg.Profile.RetentionDays,
	}

	st := store.New(log)
	st.Use(
		middleware.NewSchedule(cal, repo, st, log),
		middleware.NewChangeLog(repo, st, log),
		middleware.NewCatalog(repo, cal, rem, st, log, seed),
		middleware.NewSync(repo, rem, st, log),
		middleware.NewLifecycle(repo, cal, st, log),
	)

	return &App{
		Cfg:      cfg,
		Logger:   log,
		Store:    st,
		Repo:     repo,
		Calendar: cal,
		Remote:   rem,
		db:       db,
	}, nil
}

// Boot runs the startup sequence to quiescence: stacks, calendar access,
// initial window, retention purge.
func (a *App) Boot(ctx context.Context) error {
	a.Store.Dispatch(action.AppStarted{})
	return a.Drain(ctx)
}

// Drain waits for every queued action and in-flight middleware cascade.
func (a *App) Drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	return a.Store.Drain(ctx)
}

// Close persists the remote token for the next run and releases every handle.
func (a *App) Close() {
	if tok := a.Remote.CurrentToken(); tok != "" {
		if cp, err := a.Repo.SyncState.Load(); err == nil && cp.Token != tok {
			cp.Token = tok
			if err := a.Repo.SyncState.Save(cp); err != nil {
				a.Logger.Warn("persist sync token failed", zap.Error(err))
			}
		}
	}

	a.Store.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.Logger.Sync()
}
