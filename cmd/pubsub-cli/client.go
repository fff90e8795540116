// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larsks/pubsub-example/internal/bus"
	pnet "github.com/larsks/pubsub-example/internal/platform/net"
	"github.com/larsks/pubsub-example/internal/platform/httpx"
)

// ErrNoMessage is returned by Subscribe when the server's wait timed out (204).
var ErrNoMessage = errors.New("no message before server timeout")

// StatusError carries an unexpected HTTP status from the server.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to a pubsub server.
type Client struct {
	baseURL string
	short   *http.Client
	poll    *http.Client
}

// NewClient returns a client for baseURL. timeout bounds publishes and debug reads;
// subscribes are bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := pnet.ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: u.String(),
		short:   httpx.NewClient(timeout),
		poll:    httpx.NewLongPollClient(),
	}, nil
}

// Publish posts one message as form fields.
func (c *Client) Publish(ctx context.Context, nick, message string) error {
	form := url.Values{}
	form.Set("nick", nick)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pub", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.short.Do(req)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("publish", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Subscribe blocks on GET /sub until one message arrives, the server times the
// wait out (ErrNoMessage) or ctx ends.
func (c *Client) Subscribe(ctx context.Context) (bus.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sub", nil)
	if err != nil {
		return bus.Message{}, fmt.Errorf("subscribe: %w", err)
	}

	resp, err := c.poll.Do(req)
	if err != nil {
		return bus.Message{}, fmt.Errorf("subscribe: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var msg bus.Message
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return bus.Message{}, fmt.Errorf("subscribe: decode: %w", err)
		}
		return msg, nil
	case http.StatusNoContent:
		return bus.Message{}, ErrNoMessage
	default:
		return bus.Message{}, statusError("subscribe", resp)
	}
}

// Polling reads the number of blocked subscribers from /debug.
func (c *Client) Polling(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/debug", nil)
	if err != nil {
		return 0, fmt.Errorf("debug: %w", err)
	}
	resp, err := c.short.Do(req)
	if err != nil {
		return 0, fmt.Errorf("debug: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError("debug", resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return 0, fmt.Errorf("debug: %w", err)
	}

	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(body)), "polling = %d", &n); err != nil {
		return 0, fmt.Errorf("debug: parse %q: %w", body, err)
	}
	return n, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// displayNick is what the chat client shows for an empty nick.
func displayNick(nick string) string {
	if nick == "" {
		return "<unknown>"
	}
	return nick
}
