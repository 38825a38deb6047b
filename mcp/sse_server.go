package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// sseAdapter implements the legacy Server-Sent Events endpoint model:
// GET /sse establishment, POST /messages/ ingest, and root POST for
// clients that skip straight to a direct POST without ever opening an
// SSE stream.
type sseAdapter struct {
	registry          *Registry
	backend           Backend
	logger            *slog.Logger
	keepaliveInterval time.Duration
	highWaterBytes    int64
}

// handleGetSSE establishes a new legacy SSE stream.
func (a *sseAdapter) handleGetSSE(w http.ResponseWriter, req *http.Request) {
	if !acceptsEventStream(req) {
		http.Error(w, "text/event-stream required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s := a.registry.createLegacySession()
	stream := s.attachSSE(w, flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream.writeMu.Lock()
	err := writeEvent(w, Event{Name: "endpoint", Data: []byte("/messages/?session_id=" + s.id)})
	if err == nil {
		flusher.Flush()
	}
	stream.writeMu.Unlock()
	if err != nil {
		a.logger.Warn("sse: failed writing endpoint event", "session", s.id, "err", err)
		a.registry.removeSession(s.id)
		return
	}

	a.backend.NewSession(s.id)

	a.runKeepalive(req, stream, s.id)
}

// runKeepalive blocks until the client disconnects, periodically
// emitting ": ping\r\n\r\n" as a comment-only keepalive, then tears the
// session down.
func (a *sseAdapter) runKeepalive(req *http.Request, stream *sseStream, sessionID string) {
	ticker := time.NewTicker(a.keepaliveInterval)
	defer ticker.Stop()
	defer close(stream.closeCh)
	for {
		select {
		case <-req.Context().Done():
			a.registry.removeSession(sessionID)
			a.backend.SessionClosed(sessionID)
			return
		case <-ticker.C:
			stream.writeMu.Lock()
			err := writeKeepalive(stream.w)
			if err == nil {
				stream.flusher.Flush()
			}
			stream.writeMu.Unlock()
			if err != nil {
				a.registry.removeSession(sessionID)
				a.backend.SessionClosed(sessionID)
				return
			}
		}
	}
}

// handlePostMessages ingests a message posted to the legacy /messages/ endpoint.
func (a *sseAdapter) handlePostMessages(w http.ResponseWriter, req *http.Request) {
	sessionID := req.URL.Query().Get("session_id")
	id, ok := ParseSessionID(sessionID)
	if !ok || !a.isLegacy(id) {
		a.logger.Warn("sse: unknown session on POST /messages/", "session_id", sessionID)
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}
	a.deliver(w, req, id)
}

// handleRootPost handles a root POST in legacy mode: a direct
// POST to "/" carrying no Mcp-Session-Id header, routed to whichever
// legacy session applies per the implicit-session priority rules.
func (a *sseAdapter) handleRootPost(w http.ResponseWriter, req *http.Request) {
	id, isNew := a.registry.legacySessionFor()
	if isNew {
		a.backend.NewSession(id)
	}
	a.deliver(w, req, id)
}

func (a *sseAdapter) isLegacy(id string) bool {
	t, ok := a.registry.TransportOf(id)
	return ok && t == TransportLegacySSE
}

// deliver reads the request body, parses it as a JSON object, hands
// it to the backend, and writes the vestigial literal "Accept" body,
// preserved for wire compatibility with existing clients.
func (a *sseAdapter) deliver(w http.ResponseWriter, req *http.Request, sessionID string) {
	body, err := io.ReadAll(io.LimitReader(req.Body, a.highWaterBytes))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		http.Error(w, "invalid JSON object body", http.StatusBadRequest)
		return
	}
	a.backend.Received(sessionID, json.RawMessage(body))

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Accept")
}

// sendLegacy writes object to sessionID's SSE stream as an
// "event: message" record. If the session has no
// attached stream the send is dropped and logged.
func (a *sseAdapter) sendLegacy(sessionID string, object []byte) {
	stream := a.registry.sseStreamFor(sessionID)
	if stream == nil {
		a.logger.Warn("sse: dropping send to session with no stream", "session", sessionID)
		return
	}
	stream.writeMu.Lock()
	defer stream.writeMu.Unlock()
	if err := writeEvent(stream.w, Event{Name: "message", Data: object}); err != nil {
		a.logger.Warn("sse: write failed", "session", sessionID, "err", err)
		return
	}
	stream.flusher.Flush()
}
