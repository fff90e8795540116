// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/larsks/pubsub-example/internal/platform/httpx"
)

func runHealthcheckCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "ready", "healthcheck mode: ready (default) or live")
	host := fs.String("host", "localhost", "API host to check")
	port := fs.Int("port", 8080, "API port to check")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var path string
	switch *mode {
	case "ready":
		path = "/readyz"
	case "live":
		path = "/healthz"
	default:
		fmt.Fprintf(stderr, "Unknown healthcheck mode: %s (use ready or live)\n", *mode)
		return 2
	}

	url := fmt.Sprintf("http://%s:%d%s", *host, *port, path)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Healthcheck failed (request): %v\n", err)
		return 1
	}

	resp, err := httpx.NewClient(*timeout).Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Healthcheck failed (status): %s\n", resp.Status)
		return 1
	}

	fmt.Fprintf(stdout, "Healthcheck successful (%s)\n", *mode)
	return 0
}
