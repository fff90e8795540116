// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and swaps it atomically on reload.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher

	listenersMu sync.RWMutex
	listeners   []func(old, updated AppConfig)
}

// NewHolder creates a holder seeded with the initial config.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload. Listeners run
// synchronously in registration order.
func (h *Holder) OnReload(fn func(old, updated AppConfig)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates a fresh configuration. On failure the current
// configuration is kept.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	updated, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("new configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = updated
	h.mu.Unlock()

	for _, c := range Diff(old, updated) {
		h.logger.Info().
			Str(log.FieldEvent, "config.changed").
			Str("key", c.Key).
			Str("old", c.Old).
			Str("new", c.New).
			Bool("live", c.Live).
			Msg("config value changed")
	}

	h.listenersMu.RLock()
	listeners := append([]func(old, updated AppConfig){}, h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(old, updated)
	}

	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// StartWatcher watches the config file and reloads on change until ctx is done.
// Without a config file it does nothing.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.watcherMu.Lock()
	h.watcher = watcher
	h.watcherMu.Unlock()

	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str("path", path).Msg("watching config file for changes")
	go h.watchLoop(ctx, watcher)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Write and Create cover in-place edits and editors that replace the file.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str(log.FieldEvent, "config.file_changed").Str("op", event.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = h.Reload(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(log.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher if one is running.
func (h *Holder) Stop() {
	h.watcherMu.Lock()
	defer h.watcherMu.Unlock()
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}
