// Package client implements the client-side half of the MCP HTTP
// transport bridge: probing a remote endpoint for Streamable HTTP
// support, falling back to the legacy SSE transport when the probe
// fails, and exposing a symmetric Send/Notify/Received interface over
// whichever transport was selected.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const sessionIDHeader = "Mcp-Session-Id"

// Client is the client-side adapter: it probes a server for transport
// support and speaks whichever of the two wire protocols the server
// answers with. One Client corresponds to one logical connection to
// one MCP server.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	baseURL *url.URL

	mu              sync.Mutex
	usesNewProtocol bool
	sessionID       string
	messageURL      *url.URL // the /messages/?session_id=... endpoint in legacy mode

	received chan []byte
	started  chan struct{}

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// New creates a Client for baseURL. Call Start to probe and connect.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    u,
		received:   make(chan []byte, 32),
		started:    make(chan struct{}),
	}, nil
}

// Received returns the channel of inbound JSON-RPC objects parsed off
// whichever transport is active. On the legacy transport it is closed
// when the SSE stream ends, including after Close; on the new
// transport it is never closed.
func (c *Client) Received() <-chan []byte { return c.received }

// Start probes which transport the backend speaks: POST <url>/mcp with a
// ping request. On success (HTTP success plus a well-formed
// Mcp-Session-Id response header) it adopts the new transport;
// otherwise it falls back to the legacy SSE transport.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	probeURL := *c.baseURL
	probeURL.Path = strings.TrimSuffix(probeURL.Path, "/") + "/mcp"

	probeBody := []byte(`{"jsonrpc":"2.0","method":"ping","id":0}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, probeURL.String(), bytes.NewReader(probeBody))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		resp, doErr := c.httpClient.Do(req)
		if doErr == nil {
			defer resp.Body.Close()
			if resp.StatusCode/100 == 2 {
				if sid := resp.Header.Get(sessionIDHeader); sid != "" {
					if _, ok := parseSessionID(sid); ok {
						c.mu.Lock()
						c.usesNewProtocol = true
						c.sessionID = sid
						c.mu.Unlock()
						go c.drainResponse(resp)
						close(c.started)
						return nil
					}
				}
			}
		} else {
			c.logger.Debug("client: probe failed, falling back to legacy", "err", doErr)
		}
	}

	return c.fallbackToLegacy(ctx)
}

// drainResponse consumes and discards the probe's own response body;
// its only job was to carry the Mcp-Session-Id header.
func (c *Client) drainResponse(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
}

// fallbackToLegacy opens a GET
// /sse stream and parses the tolerant line-oriented event framing.
func (c *Client) fallbackToLegacy(ctx context.Context) error {
	sseURL := *c.baseURL
	sseURL.Path = strings.TrimSuffix(sseURL.Path, "/") + "/sse"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sseURL.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: legacy SSE connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("client: legacy SSE connect: unexpected status %s", resp.Status)
	}

	go c.readLegacyStream(resp)

	select {
	case <-c.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLegacyStream reads resp.Body incrementally through the tolerant
// parser, dispatching "endpoint" and "message" events as they arrive.
func (c *Client) readLegacyStream(resp *http.Response) {
	defer resp.Body.Close()
	defer close(c.received)

	parser := &sseLineParser{}
	buf := make([]byte, 4096)
	startSignaled := false
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.feed(buf[:n]) {
				switch ev.kind {
				case "endpoint":
					if murl, perr := c.resolveMessageURL(ev.data); perr == nil {
						c.mu.Lock()
						c.messageURL = murl
						c.mu.Unlock()
						if !startSignaled {
							startSignaled = true
							close(c.started)
						}
					} else {
						c.logger.Warn("client: bad endpoint event", "data", ev.data, "err", perr)
					}
				case "message":
					c.received <- []byte(ev.data)
				case "":
					// event with an empty name, ignore
				default:
					c.logger.Warn("client: unknown SSE event type", "kind", ev.kind)
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("client: legacy stream ended", "err", err)
			}
			if !startSignaled {
				close(c.started)
			}
			return
		}
	}
}

func (c *Client) resolveMessageURL(path string) (*url.URL, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return c.baseURL.ResolveReference(rel), nil
}

// Send sends object and waits for a paired response where the
// transport makes one available: on the new transport, POST with the
// session header and parse the JSON response body directly; on the
// legacy transport, POST to the message endpoint and expect the
// response asynchronously via the SSE stream (this call returns nil
// immediately after the POST succeeds).
func (c *Client) Send(ctx context.Context, object []byte) error {
	c.mu.Lock()
	useNew := c.usesNewProtocol
	sessionID := c.sessionID
	msgURL := c.messageURL
	c.mu.Unlock()

	if useNew {
		return c.sendNew(ctx, sessionID, object, true)
	}
	return c.sendLegacy(ctx, msgURL, object)
}

// Notify sends object without waiting for a response; the wire action
// is otherwise identical to Send, and is fire-and-forget in legacy
// mode.
func (c *Client) Notify(ctx context.Context, object []byte) error {
	c.mu.Lock()
	useNew := c.usesNewProtocol
	sessionID := c.sessionID
	msgURL := c.messageURL
	c.mu.Unlock()

	if useNew {
		return c.sendNew(ctx, sessionID, object, false)
	}
	return c.sendLegacy(ctx, msgURL, object)
}

func (c *Client) sendNew(ctx context.Context, sessionID string, object []byte, wantResponse bool) error {
	mcpURL := *c.baseURL
	mcpURL.Path = strings.TrimSuffix(mcpURL.Path, "/") + "/mcp"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mcpURL.String(), bytes.NewReader(object))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionIDHeader, sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logTLSErrorAndContinue(err)
		return err
	}
	defer resp.Body.Close()

	if !wantResponse {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("client: mcp post failed: %s: %s", resp.Status, string(body))
	}
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("client: invalid response JSON: %w", err)
	}
	c.received <- body
	return nil
}

func (c *Client) sendLegacy(ctx context.Context, msgURL *url.URL, object []byte) error {
	if msgURL == nil {
		return fmt.Errorf("client: legacy message endpoint not yet known")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msgURL.String(), bytes.NewReader(object))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logTLSErrorAndContinue(err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// logTLSErrorAndContinue logs a transport-level failure rather than
// treating the connection as fatal.
func (c *Client) logTLSErrorAndContinue(err error) {
	c.logger.Warn("client: request error (continuing)", "err", err)
}

// Close tears down the client's background stream, if any.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
	})
	return nil
}

func parseSessionID(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSuffix(s, "}"), "{")
	if len(s) != 36 {
		return "", false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return "", false
			}
		default:
			if !isHex(byte(r)) {
				return "", false
			}
		}
	}
	return s, true
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
