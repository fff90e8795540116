// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	pslog "github.com/larsks/pubsub-example/internal/log"
	pnet "github.com/larsks/pubsub-example/internal/platform/net"
)

// SoakReport is the JSON output of a soak run.
type SoakReport struct {
	RunID           string    `json:"run_id"`
	BaseURL         string    `json:"base_url"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_s"`
	Subscribers     int       `json:"subscribers"`
	Messages        int       `json:"messages"`
	Published       int       `json:"published"`
	Delivered       int       `json:"delivered"`
	Missing         int       `json:"missing"`
	OutOfOrder      int       `json:"out_of_order"`
	Error           string    `json:"error,omitempty"`
	Verdict         string    `json:"verdict"`
}

// SoakConfig holds the soak parameters.
type SoakConfig struct {
	Subscribers  int
	Messages     int
	Rate         float64
	Timeout      time.Duration
	PollInterval time.Duration
}

const (
	soakNick        = "soak"
	verdictPass     = "PASS"
	verdictFail     = "FAIL"
	defaultPollTick = 5 * time.Millisecond
)

func runSoakCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, baseURL := newFlagSet("soak", stderr)
	cfg := SoakConfig{}
	fs.IntVar(&cfg.Subscribers, "subscribers", 10, "concurrent long-poll subscribers")
	fs.IntVar(&cfg.Messages, "messages", 100, "messages to publish")
	fs.Float64Var(&cfg.Rate, "rate", 50, "maximum publishes per second")
	fs.DurationVar(&cfg.Timeout, "timeout", time.Minute, "overall deadline")
	reportPath := fs.String("report", "", "write the JSON report here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if cfg.Subscribers < 1 || cfg.Messages < 1 {
		fmt.Fprintln(stderr, "Error: --subscribers and --messages must be at least 1")
		return 2
	}

	c, err := NewClient(*baseURL, 5*time.Second)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	report := runSoak(ctx, c, pnet.SanitizeURL(*baseURL), cfg, pslog.WithComponent("soak"))

	if err := writeSoakReport(*reportPath, stdout, report); err != nil {
		fmt.Fprintf(stderr, "Failed to write report: %v\n", err)
		return 1
	}
	if report.Verdict != verdictPass {
		return 1
	}
	return 0
}

// runSoak fans Messages publishes out to Subscribers long polls. Each publish waits
// until /debug shows every subscriber blocked, so a healthy server delivers every
// message to every subscriber in order.
func runSoak(ctx context.Context, c *Client, baseURL string, cfg SoakConfig, logger zerolog.Logger) SoakReport {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollTick
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	report := SoakReport{
		RunID:       uuid.NewString(),
		BaseURL:     baseURL,
		StartedAt:   time.Now(),
		Subscribers: cfg.Subscribers,
		Messages:    cfg.Messages,
	}
	logger = logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().
		Int("subscribers", cfg.Subscribers).
		Int("messages", cfg.Messages).
		Msg("soak started")

	var (
		mu       sync.Mutex
		received = make([][]int, cfg.Subscribers)
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Subscribers {
		g.Go(func() error {
			for {
				mu.Lock()
				done := len(received[i]) >= cfg.Messages
				mu.Unlock()
				if done {
					return nil
				}

				msg, err := c.Subscribe(gctx)
				if errors.Is(err, ErrNoMessage) {
					continue
				}
				if err != nil {
					return fmt.Errorf("subscriber %d: %w", i, err)
				}
				seq, err := strconv.Atoi(msg.Text)
				if err != nil || msg.Nick != soakNick {
					return fmt.Errorf("subscriber %d: unexpected message %+v", i, msg)
				}
				mu.Lock()
				received[i] = append(received[i], seq)
				mu.Unlock()
			}
		})
	}

	var published int
	g.Go(func() error {
		var limiter *rate.Limiter
		if cfg.Rate > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
		}
		for seq := range cfg.Messages {
			if err := waitForPolling(gctx, c, cfg.Subscribers, cfg.PollInterval); err != nil {
				return err
			}
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := c.Publish(gctx, soakNick, strconv.Itoa(seq)); err != nil {
				return err
			}
			published++
		}
		return nil
	})

	err := g.Wait()

	report.EndedAt = time.Now()
	report.DurationSeconds = report.EndedAt.Sub(report.StartedAt).Seconds()
	report.Published = published
	for _, seqs := range received {
		report.Delivered += len(seqs)
		for k, seq := range seqs {
			if seq != k {
				report.OutOfOrder++
			}
		}
	}
	report.Missing = cfg.Subscribers*cfg.Messages - report.Delivered

	report.Verdict = verdictPass
	if err != nil {
		report.Error = err.Error()
		report.Verdict = verdictFail
	}
	if report.Missing != 0 || report.OutOfOrder != 0 {
		report.Verdict = verdictFail
	}

	logger.Info().
		Str("verdict", report.Verdict).
		Int("delivered", report.Delivered).
		Int("missing", report.Missing).
		Dur(pslog.FieldDuration, report.EndedAt.Sub(report.StartedAt)).
		Msg("soak finished")
	return report
}

func waitForPolling(ctx context.Context, c *Client, want int, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		n, err := c.Polling(ctx)
		if err != nil {
			return err
		}
		if n >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d subscribers (have %d): %w", want, n, ctx.Err())
		case <-ticker.C:
		}
	}
}

func writeSoakReport(path string, stdout io.Writer, report SoakReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending report: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return pending.CloseAtomicallyReplace()
}
