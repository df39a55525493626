package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"bedrockcron/config"
	"bedrockcron/internal/store"
	"bedrockcron/pkg/logger"
)

type appDeps struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store
}

func newAppDeps() (*appDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := os.MkdirAll(cfg.Scheduler.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s, err := store.New(filepath.Join(cfg.Scheduler.DataDir, "bedrockcron.db"))
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	return &appDeps{cfg: cfg, log: lg, store: s}, nil
}

func (d *appDeps) Close() {
	_ = d.store.Close()
	_ = d.log.Sync()
}
