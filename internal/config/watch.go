package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Watcher polls a config file and hands every successfully parsed version to
// onUpdate. A file that fails to load is logged and skipped; Current keeps
// returning the last good config until a valid file appears.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *zerolog.Logger
	onUpdate func(*Config)

	mu      sync.RWMutex
	current *Config
	lastMod time.Time
}

// NewWatcher prepares a watcher. A non-positive interval polls every 30s.
func NewWatcher(path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Config)) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Watcher{
		path:     ResolvePath(path),
		interval: interval,
		logger:   logger,
		onUpdate: onUpdate,
	}
}

// Start loads the file once and polls it until ctx is done. The initial load
// must succeed.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat config %s: %w", w.path, err)
	}
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.apply(cfg, info.ModTime())

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = w.Check()
			}
		}
	}()
	return nil
}

// Check reloads the file if it changed since the last good load. It reports
// whether a new config was applied.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config stat failed")
		return false, err
	}

	w.mu.RLock()
	lastMod := w.lastMod
	w.mu.RUnlock()
	if !info.ModTime().After(lastMod) {
		return false, nil
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("config reload failed, keeping last good config")
		return false, err
	}
	w.apply(cfg, info.ModTime())
	w.logger.Info().Str("path", w.path).Msg("config reloaded")
	return true, nil
}

// Current returns the last config that loaded successfully.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) apply(cfg *Config, modTime time.Time) {
	w.mu.Lock()
	w.current = cfg
	w.lastMod = modTime
	w.mu.Unlock()

	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
