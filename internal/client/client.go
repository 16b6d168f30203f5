// Package client talks to a running tailcast daemon over its HTTP and
// WebSocket endpoints.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"tailcast/internal/engine"
	"tailcast/internal/hub"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("tailcast daemon unavailable")

// Client is a thin API client. The zero value is not usable; call New.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New parses bind, which may be host:port or a full http(s) URL.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("server address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout; callers bound requests with their context.
		http: &http.Client{},
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (engine.Status, error) {
	var status engine.Status
	err := c.getJSON(ctx, "/api/status", nil, &status)
	return status, err
}

// Lines fetches the last n lines of the watched file.
func (c *Client) Lines(ctx context.Context, n int) ([]string, error) {
	values := url.Values{}
	if n >= 0 {
		values.Set("n", strconv.Itoa(n))
	}
	var msg hub.Message
	if err := c.getJSON(ctx, "/api/lines", values, &msg); err != nil {
		return nil, err
	}
	if msg.IsError() {
		return nil, errors.New(msg.Err)
	}
	return msg.Lines, nil
}

// Follow subscribes over WebSocket and invokes onMessage for the catch-up
// batch and every later batch. It returns nil when ctx ends or the server
// closes the connection normally.
func (c *Client) Follow(ctx context.Context, onMessage func(hub.Message)) error {
	endpoint := *c.base
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}
	endpoint.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), c.headers())
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("websocket handshake returned status %d", resp.StatusCode)
		}
		return wrapUnavailable(err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg hub.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}

func (c *Client) headers() http.Header {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	return header
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header = c.headers()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error != "" {
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrapUnavailable(err error) error {
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsUnavailable reports whether err means nothing is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
