package mcp

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Transport tags which wire protocol a session was created under. It
// is set once at session creation and never mutates, per the data
// model's invariant.
type Transport int

const (
	// TransportLegacySSE is the pre-Streamable SSE transport.
	TransportLegacySSE Transport = iota
	// TransportStreamableHTTP is the newer request/response transport.
	TransportStreamableHTTP
)

func (t Transport) String() string {
	if t == TransportLegacySSE {
		return "legacy_sse"
	}
	return "streamable_http"
}

// pendingRequest holds an HTTP request's ResponseWriter open until a
// matching backend response arrives. A pending request writes exactly
// one response body, so no flushing is needed.
type pendingRequest struct {
	w      http.ResponseWriter
	done   chan struct{} // closed once the response has been written or abandoned
	closed atomic.Bool   // true once abandoned by client disconnect or DELETE
}

// sseStream is the long-lived event-stream socket for a legacy
// session. Writes to it must be single-writer: the session's own lock
// protects the field that holds the stream, and writeMu below
// serializes the actual byte writes.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
	closeCh chan struct{} // closed when the stream's request context ends
}

// session is the registry's record for one logical MCP conversation.
type session struct {
	id        string
	transport Transport

	mu      sync.Mutex // guards sse and pending below
	sse     *sseStream
	pending []*pendingRequest
}

// Registry tracks active sessions, the implicit fallback session, and
// the pending-request queues bound to streamable_http sessions. Its
// own lock guards the session map and the implicit-session slot; each
// session's pending queue and SSE stream are guarded by that
// session's lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	implicit string // "" if no implicit session exists yet

	pendingQueueMax int
}

// NewRegistry creates an empty session registry. pendingQueueMax
// bounds each streamable_http session's pending-request queue; zero
// selects the default of 64.
func NewRegistry(pendingQueueMax int) *Registry {
	if pendingQueueMax <= 0 {
		pendingQueueMax = 64
	}
	return &Registry{
		sessions:        make(map[string]*session),
		pendingQueueMax: pendingQueueMax,
	}
}

// newSessionID mints a fresh, guaranteed-unique-at-call-time session
// identifier.
func newSessionID() string {
	return uuid.New().String()
}

// ParseSessionID validates s as a session id, tolerating surrounding
// braces per the wire format note in the external interfaces section.
func ParseSessionID(s string) (string, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// createLegacySession registers a brand new legacy_sse session and
// returns it. The caller installs the sse stream separately via
// attachSSE.
func (r *Registry) createLegacySession() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &session{id: newSessionID(), transport: TransportLegacySSE}
	r.sessions[s.id] = s
	return s
}

// attachSSE installs the event-stream socket for s.
func (s *session) attachSSE(w http.ResponseWriter, f http.Flusher) *sseStream {
	stream := &sseStream{w: w, flusher: f, closeCh: make(chan struct{})}
	s.mu.Lock()
	s.sse = stream
	s.mu.Unlock()
	return stream
}

// legacySessionFor implements the root-POST dispatch priority from
// priority order: any existing legacy SSE session, else the implicit session,
// else a freshly created implicit session (caller is told isNew so it
// can raise NewSession).
func (r *Registry) legacySessionFor() (id string, isNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.sessions {
		if s.transport == TransportLegacySSE {
			return sid, false
		}
	}
	if r.implicit != "" {
		if _, ok := r.sessions[r.implicit]; ok {
			return r.implicit, false
		}
	}
	s := &session{id: newSessionID(), transport: TransportLegacySSE}
	r.sessions[s.id] = s
	r.implicit = s.id
	return s.id, true
}

// createStreamableSession mints (or re-validates) a streamable_http
// session per the new transport's GET /mcp establishment rules.
//
//   - existingID == "" mints a fresh id.
//   - existingID set but unknown mints a fresh id (stale id case).
//   - existingID set and known echoes it back unchanged.
func (r *Registry) createStreamableSession(existingID string) (id string, isNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID != "" {
		if s, ok := r.sessions[existingID]; ok && s.transport == TransportStreamableHTTP {
			return existingID, false
		}
	}
	s := &session{id: newSessionID(), transport: TransportStreamableHTTP}
	r.sessions[s.id] = s
	return s.id, true
}

// get looks up a session by id without mutating the registry.
func (r *Registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// TransportOf reports the transport variant for id, if known.
func (r *Registry) TransportOf(id string) (Transport, bool) {
	s, ok := r.get(id)
	if !ok {
		return 0, false
	}
	return s.transport, true
}

// Exists reports whether id names a currently registered session.
func (r *Registry) Exists(id string) bool {
	_, ok := r.get(id)
	return ok
}

// enqueuePending appends a pending request to s's FIFO queue. It
// returns false if the queue is already at pendingQueueMax.
func (r *Registry) enqueuePending(id string, p *pendingRequest) bool {
	s, ok := r.get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= r.pendingQueueMax {
		return false
	}
	s.pending = append(s.pending, p)
	return true
}

// dequeuePending pops the oldest pending request for id, if any.
func (r *Registry) dequeuePending(id string) *pendingRequest {
	s, ok := r.get(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	return p
}

// removePending deletes p from id's pending queue, if still present
// (it may already have been dequeued by a racing send or drained by a
// DELETE). Used when a client disconnects before a response arrives.
func (r *Registry) removePending(id string, p *pendingRequest) {
	s, ok := r.get(id)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.pending {
		if q == p {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// removeSession deletes id from the registry, draining (but not
// closing — the caller does that) its pending queue, and clears the
// implicit-session slot if id was it. It returns the drained pending
// entries.
func (r *Registry) removeSession(id string) []*pendingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	if r.implicit == id {
		r.implicit = ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.pending
	s.pending = nil
	return drained
}

// sseStreamFor returns the event-stream socket for id, if the session
// is legacy and has one attached.
func (r *Registry) sseStreamFor(id string) *sseStream {
	s, ok := r.get(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sse
}
