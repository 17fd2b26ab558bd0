// Package app wires configuration, logging, storage, crypto and the vault
// manager into one runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/passvault/passvault/internal/config"
	"github.com/passvault/passvault/pkg/crypto"
	"github.com/passvault/passvault/pkg/hibp"
	"github.com/passvault/passvault/pkg/security"
	"github.com/passvault/passvault/pkg/storage"
	"github.com/passvault/passvault/pkg/vault"
)

// autoLockInterval is how often the background monitor checks for idleness.
const autoLockInterval = 30 * time.Second

// App owns the wired components and their lifecycle.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Store   *storage.SQLiteStore
	Manager *vault.Manager

	lockInterval time.Duration
	stopAutoLock context.CancelFunc
}

// New builds the application from the given configuration.
func New(cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.VaultDir, 0o700); err != nil {
		return nil, fmt.Errorf("app: failed to create vault directory: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath(), logger.Named("storage"))
	if err != nil {
		return nil, err
	}

	cryptoSvc := crypto.NewService(store, crypto.DefaultParams)

	manager := vault.NewManager(vault.ManagerConfig{
		Crypto:      cryptoSvc,
		Credentials: store,
		Settings:    store,
		Audit:       store,
		Strength:    security.NewScorer(),
		Breach: hibp.NewClient(
			hibp.WithBaseURL(cfg.HIBP.BaseURL),
			hibp.WithTimeout(cfg.HIBPTimeout()),
			hibp.WithLogger(logger.Named("hibp")),
		),
		Logger: logger.Named("vault"),
	})

	return &App{
		Config:       cfg,
		Log:          logger,
		Store:        store,
		Manager:      manager,
		lockInterval: autoLockInterval,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("app: invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("app: failed to build logger: %w", err)
	}
	return logger, nil
}

// StartAutoLock launches a background goroutine that locks the vault after
// the configured idle timeout. A timeout of zero disables auto-lock.
func (a *App) StartAutoLock() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopAutoLock = cancel
	go a.autoLockLoop(ctx)
}

func (a *App) autoLockLoop(ctx context.Context) {
	ticker := time.NewTicker(a.lockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.checkIdle()
		}
	}
}

func (a *App) checkIdle() {
	if !a.Manager.IsUnlocked() {
		return
	}
	settings, err := a.Manager.GetSettings()
	if err != nil {
		a.Log.Warn("auto-lock settings read failed", zap.Error(err))
		return
	}
	if settings.AutoLockTimeout == 0 {
		return
	}
	idle := time.Since(a.Manager.LastActivity())
	if idle >= time.Duration(settings.AutoLockTimeout)*time.Minute {
		a.Log.Info("locking vault after inactivity", zap.Duration("idle", idle))
		a.Manager.Lock()
	}
}

// Close locks the vault, stops the auto-lock monitor and releases resources.
func (a *App) Close() error {
	if a.stopAutoLock != nil {
		a.stopAutoLock()
	}
	a.Manager.Lock()
	err := a.Store.Close()
	_ = a.Log.Sync()
	return err
}
