// SPDX-License-Identifier: MIT

// Command pubsub-cli publishes to, subscribes to and soak-tests a pubsub server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/larsks/pubsub-example/internal/config"
	pslog "github.com/larsks/pubsub-example/internal/log"
	pnet "github.com/larsks/pubsub-example/internal/platform/net"
	"github.com/larsks/pubsub-example/internal/version"
)

const defaultRetryInterval = time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	pslog.Configure(pslog.Config{Output: os.Stderr, Service: "pubsub-cli"})
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return 0
	}

	switch args[0] {
	case "pub":
		return runPub(ctx, args[1:], stdout, stderr)
	case "sub":
		return runSubCLI(ctx, args[1:], stdout, stderr)
	case "soak":
		return runSoakCLI(ctx, args[1:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintln(stdout, version.String())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pubsub-cli pub  [--url URL] --nick NICK --message TEXT")
	fmt.Fprintln(w, "  pubsub-cli sub  [--url URL] [--count N]")
	fmt.Fprintln(w, "  pubsub-cli soak [--url URL] [--subscribers N] [--messages M] [--rate R] [--report FILE]")
	fmt.Fprintln(w, "  pubsub-cli version")
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("pubsub-cli "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", config.ParseString("PUBSUB_URL", "http://localhost:8080"), "pubsub server base URL")
	return fs, baseURL
}

func runPub(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, baseURL := newFlagSet("pub", stderr)
	nick := fs.String("nick", "", "sender nick")
	message := fs.String("message", "", "message text")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := NewClient(*baseURL, *timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := c.Publish(ctx, *nick, *message); err != nil {
		fmt.Fprintf(stderr, "Publish failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "sent")
	return 0
}

func runSubCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, baseURL := newFlagSet("sub", stderr)
	count := fs.Int("count", 0, "exit after N messages (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := NewClient(*baseURL, 5*time.Second)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := pslog.WithComponent("sub").With().Str("url", pnet.SanitizeURL(*baseURL)).Logger()
	if err := subscribeLoop(ctx, c, stdout, *count, defaultRetryInterval, logger); err != nil {
		fmt.Fprintf(stderr, "Subscribe failed: %v\n", err)
		return 1
	}
	return 0
}

// subscribeLoop prints messages as "nick: text" and re-polls immediately after a
// message or a server timeout. Failed polls are retried at most once per
// retryInterval. It returns nil when ctx ends or count messages were printed.
func subscribeLoop(ctx context.Context, c *Client, out io.Writer, count int, retryInterval time.Duration, logger zerolog.Logger) error {
	limiter := rate.NewLimiter(rate.Every(retryInterval), 1)
	limiter.Allow()

	received := 0
	for {
		msg, err := c.Subscribe(ctx)
		switch {
		case err == nil:
			if _, err := fmt.Fprintf(out, "%s: %s\n", displayNick(msg.Nick), msg.Text); err != nil {
				return err
			}
			received++
			if count > 0 && received >= count {
				return nil
			}
		case errors.Is(err, ErrNoMessage):
		case ctx.Err() != nil:
			return nil
		default:
			logger.Warn().Err(err).Str(pslog.FieldEvent, "subscribe.retry").Msg("poll failed, retrying")
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
	}
}
