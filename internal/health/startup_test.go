// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pubsub-example/internal/config"
)

func TestPerformStartupChecks(t *testing.T) {
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html></html>"), 0o600))
	notADir := filepath.Join(staticDir, "index.html")

	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "defaults"},
		{name: "static override", mutate: func(c *config.AppConfig) { c.Static.Dir = staticDir }},
		{name: "static missing", mutate: func(c *config.AppConfig) { c.Static.Dir = filepath.Join(staticDir, "nope") }, wantErr: "static directory"},
		{name: "static is a file", mutate: func(c *config.AppConfig) { c.Static.Dir = notADir }, wantErr: "not a directory"},
		{name: "bad listen addr", mutate: func(c *config.AppConfig) { c.API.ListenAddr = "localhost" }, wantErr: "listen address"},
		{
			name: "metrics collides with api",
			mutate: func(c *config.AppConfig) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddr = c.API.ListenAddr
			},
			wantErr: "collides",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := PerformStartupChecks(context.Background(), cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPerformStartupChecks_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, PerformStartupChecks(ctx, config.Defaults()), context.Canceled)
}
