package mcp

import (
	"encoding/json"
	"log/slog"
)

// EchoBackend is a trivial Backend stand-in for the application-level
// MCP method dispatcher this bridge treats as an external
// collaborator. It answers every inbound JSON-RPC request with a
// JSON-RPC result echoing the request's params, and ignores
// notifications. It exists so the bridge is runnable and testable
// end-to-end without a real backend wired up.
type EchoBackend struct {
	Sender Sender
	Logger *slog.Logger
}

func (b *EchoBackend) NewSession(sessionID string) {
	b.logger().Info("session created", "session", sessionID)
}

func (b *EchoBackend) SessionClosed(sessionID string) {
	b.logger().Info("session closed", "session", sessionID)
}

func (b *EchoBackend) Received(sessionID string, object []byte) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(object, &req); err != nil {
		b.logger().Warn("echo backend: invalid object", "session", sessionID, "err", err)
		return
	}
	if len(req.ID) == 0 || string(req.ID) == "null" {
		return // notification: nothing to echo a response to
	}
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(req.ID),
		"result":  json.RawMessage(req.Params),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		b.logger().Warn("echo backend: failed marshaling response", "session", sessionID, "err", err)
		return
	}
	b.Sender.Send(sessionID, data)
}

func (b *EchoBackend) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
