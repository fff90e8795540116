// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pubsub-example/internal/api"
	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/health"
	"github.com/larsks/pubsub-example/internal/longpoll"
)

func newServer(t *testing.T) (*httptest.Server, *api.Server) {
	t.Helper()
	cfg := config.Defaults()
	b := bus.NewMemoryBus(cfg.Bus.Buffer)
	srv, err := api.New(cfg, api.Deps{
		Bus:        b,
		Waiter:     longpoll.NewWaiter(b, nil),
		Health:     health.NewManager("test"),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = b.Close() })
	return ts, srv
}

func mustClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, time.Second)
	require.NoError(t, err)
	return c
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"shout"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestPubSub_RoundTrip(t *testing.T) {
	ts, srv := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := mustClient(t, ts.URL)
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- subscribeLoop(ctx, c, &out, 1, 10*time.Millisecond, zerolog.Nop())
	}()

	require.Eventually(t, func() bool { return srv.Waiting() == 1 }, 5*time.Second, 5*time.Millisecond)

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"pub", "--url", ts.URL, "--message", "hello"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "sent\n", stdout.String())

	require.NoError(t, <-done)
	assert.Equal(t, "<unknown>: hello\n", out.String())
}

func TestPub_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"pub", "--url", ts.URL, "--nick", "a", "--message", "b"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "503")
}

func TestSubscribeLoop_RetriesAfterErrorAndRepollsAfterTimeout(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.Error(w, "boom", http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(bus.Message{Nick: "alice", Text: "hi"})
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	err := subscribeLoop(ctx, mustClient(t, ts.URL), &out, 1, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "alice: hi\n", out.String())
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "retry after an error is paced")
}

func TestSubscribeLoop_StopsOnCancel(t *testing.T) {
	ts, srv := newServer(t)

	c := mustClient(t, ts.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- subscribeLoop(ctx, c, &bytes.Buffer{}, 0, time.Second, zerolog.Nop())
	}()
	require.Eventually(t, func() bool { return srv.Waiting() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe loop did not stop")
	}
	require.Eventually(t, func() bool { return srv.Waiting() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestClient_Polling(t *testing.T) {
	ts, srv := newServer(t)
	c := mustClient(t, ts.URL)

	n, err := c.Polling(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = c.Subscribe(ctx) }()
	require.Eventually(t, func() bool { return srv.Waiting() == 1 }, 5*time.Second, 5*time.Millisecond)

	n, err = c.Polling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDisplayNick(t *testing.T) {
	assert.Equal(t, "<unknown>", displayNick(""))
	assert.Equal(t, "bob", displayNick("bob"))
}

func TestSoak_Pass(t *testing.T) {
	ts, _ := newServer(t)

	report := runSoak(context.Background(), mustClient(t, ts.URL), ts.URL, SoakConfig{
		Subscribers: 4,
		Messages:    10,
		Timeout:     20 * time.Second,
	}, zerolog.Nop())

	assert.Equal(t, verdictPass, report.Verdict, report.Error)
	assert.Equal(t, 10, report.Published)
	assert.Equal(t, 40, report.Delivered)
	assert.Zero(t, report.Missing)
	assert.Zero(t, report.OutOfOrder)
	assert.NotEmpty(t, report.RunID)
}

func TestSoak_FailsWhenSubscribersNeverBlock(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/debug":
			_, _ = w.Write([]byte("polling = 0\n"))
		case "/sub":
			<-r.Context().Done()
		}
	}))
	defer ts.Close()

	report := runSoak(context.Background(), mustClient(t, ts.URL), ts.URL, SoakConfig{
		Subscribers: 2,
		Messages:    3,
		Timeout:     200 * time.Millisecond,
	}, zerolog.Nop())

	assert.Equal(t, verdictFail, report.Verdict)
	assert.Zero(t, report.Published)
	assert.Equal(t, 6, report.Missing)
	assert.NotEmpty(t, report.Error)
}

func TestSoakCLI_WritesReport(t *testing.T) {
	ts, _ := newServer(t)
	path := filepath.Join(t.TempDir(), "out", "report.json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"soak", "--url", ts.URL, "--subscribers", "2", "--messages", "3", "--rate", "0", "--report", path,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report SoakReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, verdictPass, report.Verdict)
	assert.Equal(t, 6, report.Delivered)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "soak zero subscribers", args: []string{"soak", "--subscribers", "0"}},
		{name: "pub bad url", args: []string{"pub", "--url", "ftp://example.com", "--message", "x"}},
		{name: "sub url with credentials", args: []string{"sub", "--url", "http://u:p@example.com"}},
		{name: "unknown flag", args: []string{"sub", "--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 2, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}
