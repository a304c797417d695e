package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes or on SIGHUP, and
// hands each valid version to an apply function. Invalid versions are logged
// and skipped; the last applied config stays in effect.
type Watcher struct {
	configPath string
	apply      func(*Config) error
	logger     zerolog.Logger
	debounce   time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	stop    sync.Once
}

// NewWatcher creates a new config file watcher
func NewWatcher(configPath string, apply func(*Config) error, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory so editors that replace the file are still seen
	if err := fsWatcher.Add(filepath.Dir(configPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		configPath: configPath,
		apply:      apply,
		logger:     logger.With().Str("component", "config-watcher").Logger(),
		debounce:   defaultDebounce,
		watcher:    fsWatcher,
		done:       make(chan struct{}),
	}, nil
}

// Start watches until ctx is cancelled or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)

	target := filepath.Clean(w.configPath)

	go func() {
		defer signal.Stop(sigChan)
		defer w.watcher.Close()

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				w.logger.Info().Msg("Config watcher stopped")
				return

			case <-w.done:
				w.logger.Info().Msg("Config watcher stopped")
				return

			case sig := <-sigChan:
				w.logger.Info().
					Str("signal", sig.String()).
					Msg("Received signal, reloading configuration")
				w.Reload()

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				w.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, w.Reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()

	w.logger.Info().
		Str("path", w.configPath).
		Msg("Config watcher started")
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.stop.Do(func() { close(w.done) })
}

// Reload loads the file and applies it if it is valid
func (w *Watcher) Reload() {
	w.logger.Info().Msg("Reloading configuration...")

	newCfg, err := Load(w.configPath)
	if err != nil {
		w.logger.Error().
			Err(err).
			Msg("Failed to load new configuration - keeping current config")
		return
	}

	if err := w.apply(newCfg); err != nil {
		w.logger.Error().
			Err(err).
			Msg("Failed to apply new configuration - keeping current config")
		return
	}

	w.logger.Info().Msg("Configuration reloaded successfully")
}
