// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logLevel: info\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)

	var (
		mu    sync.Mutex
		calls [][2]string
	)
	h.OnReload(func(old, updated AppConfig) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]string{old.LogLevel, updated.LogLevel})
	})

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nlongpoll:\n  timeout: 5s\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	got := h.Get()
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, 5*time.Second, got.LongPoll.Timeout)

	mu.Lock()
	assert.Equal(t, [][2]string{{"info", "debug"}}, calls)
	mu.Unlock()
}

func TestHolder_ReloadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logLevel: warn\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	called := false
	h.OnReload(func(_, _ AppConfig) { called = true })

	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\nbogus: true\n"), 0o600))
	err = h.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)

	assert.Equal(t, "warn", h.Get().LogLevel)
	assert.False(t, called)
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "config.yaml", "longpoll:\n  timeout: 1s\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("longpoll:\n  timeout: 9s\n"), 0o600))

	assert.Eventually(t, func() bool {
		return h.Get().LongPoll.Timeout == 9*time.Second
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHolder_WatcherWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "test"))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
