package mcp

// Backend is the application-level collaborator behind the transport
// bridge. The bridge does not interpret JSON-RPC method names; it only
// moves parsed JSON objects between HTTP and the backend, and expects
// the backend to produce matching JSON-RPC responses asynchronously.
//
// Implementations must be safe for concurrent use: Received and
// NewSession are invoked from whichever goroutine is handling the
// triggering HTTP request, and Send may be called from backend-owned
// goroutines at any time after NewSession for that session.
type Backend interface {
	// Received is called for every inbound JSON object parsed off
	// either transport, tagged with the session that produced it.
	Received(sessionID string, object []byte)

	// NewSession is called once when a session is created, on both
	// the legacy and the new transport.
	NewSession(sessionID string)

	// SessionClosed is called once a session is torn down, either by
	// DELETE /mcp or by the disconnect of a legacy SSE stream.
	SessionClosed(sessionID string)
}

// Sender is implemented by the bridge's session registry and is the
// sink a Backend uses to deliver outbound objects. It is a separate
// interface from Backend because the bridge, not the backend, owns
// framing decisions (SSE vs. pending-request pairing).
type Sender interface {
	// Send delivers object to the given session. The adapter decides
	// framing by the session's transport variant. If the session is
	// unknown, or (for streamable_http) has no pending request to
	// pair with, the send is dropped and logged.
	Send(sessionID string, object []byte)
}
