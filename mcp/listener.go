// Package mcp implements the server-side and shared primitives of the
// MCP HTTP transport bridge: the session registry, the legacy SSE
// adapter, the Streamable HTTP adapter, and the listener that serves
// both on one net/http server. The client-side adapter lives in the
// sibling client package.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures a Listener.
type Options struct {
	// BindAddress is the address to listen on, e.g. "localhost:8080".
	BindAddress string

	// SSEKeepaliveInterval is the interval between ": ping" keepalive
	// comments on legacy SSE streams. Zero selects the default
	// of 15 seconds.
	SSEKeepaliveInterval time.Duration

	// PendingQueueMax bounds each streamable_http session's queue of
	// held-open requests. Zero selects the default of 64.
	PendingQueueMax int

	// WriteHighWaterBytes bounds request body sizes read by either
	// adapter. Zero selects the default of 1 MiB.
	WriteHighWaterBytes int64

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SSEKeepaliveInterval <= 0 {
		o.SSEKeepaliveInterval = 15 * time.Second
	}
	if o.PendingQueueMax <= 0 {
		o.PendingQueueMax = 64
	}
	if o.WriteHighWaterBytes <= 0 {
		o.WriteHighWaterBytes = 1 << 20
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Listener serves both MCP HTTP transports on one net/http.Server,
// routing by (method, path).
type Listener struct {
	opts     Options
	registry *Registry
	backend  Backend
	sse      *sseAdapter
	streams  *streamableAdapter
	srv      *http.Server
}

// NewListener builds a Listener bridging backend over the given
// options. It does not start serving until Serve is called.
func NewListener(backend Backend, opts Options) *Listener {
	opts = opts.withDefaults()

	registry := NewRegistry(opts.PendingQueueMax)
	l := &Listener{
		opts:     opts,
		registry: registry,
		backend:  backend,
		sse: &sseAdapter{
			registry:          registry,
			backend:           backend,
			logger:            opts.Logger,
			keepaliveInterval: opts.SSEKeepaliveInterval,
			highWaterBytes:    opts.WriteHighWaterBytes,
		},
		streams: &streamableAdapter{
			registry: registry,
			backend:  backend,
			logger:   opts.Logger,
			// The permissive inline-session-creation revision is not
			// implemented (see DESIGN.md); the adapter always enforces
			// the stricter, spec-adopted behavior.
			strictSessionHeader: true,
			highWaterBytes:      opts.WriteHighWaterBytes,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", l.sse.handleGetSSE)
	mux.HandleFunc("POST /messages/", l.sse.handlePostMessages)
	mux.HandleFunc("GET /mcp", l.streams.handleGet)
	mux.HandleFunc("HEAD /mcp", l.streams.handleHead)
	mux.HandleFunc("DELETE /mcp", l.streams.handleDelete)
	mux.HandleFunc("POST /mcp", l.streams.handlePost)
	mux.HandleFunc("POST /{$}", l.handleRootPost)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	l.srv = &http.Server{
		Addr:    opts.BindAddress,
		Handler: mux,
	}
	return l
}

// handleRootPost dispatches a POST to "/": a carried Mcp-Session-Id
// header means treat it as a new-protocol POST; otherwise it's the
// legacy direct-POST path.
func (l *Listener) handleRootPost(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get(sessionIDHeader) != "" {
		l.streams.handlePost(w, req)
		return
	}
	l.sse.handleRootPost(w, req)
}

// Send implements Sender by dispatching to whichever adapter owns
// that session's transport.
func (l *Listener) Send(sessionID string, object []byte) {
	t, ok := l.registry.TransportOf(sessionID)
	if !ok {
		l.opts.Logger.Warn("mcp: dropping send to unknown session", "session", sessionID)
		return
	}
	switch t {
	case TransportLegacySSE:
		l.sse.sendLegacy(sessionID, object)
	case TransportStreamableHTTP:
		l.streams.sendStreamable(sessionID, object)
	}
}

// Serve starts the HTTP server and blocks until ctx is cancelled, at
// which point it shuts down gracefully.
func (l *Listener) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := l.srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
