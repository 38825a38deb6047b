package mcp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcpbridge/httpbridge/jsonrpc"
)

// Sentinel errors for the conditions the registry and adapters can
// hit internally; none of these are written to the wire directly —
// see writeJSONRPCError for the HTTP-facing error objects.
var (
	ErrSessionNotFound  = errors.New("mcp: session not found")
	ErrSessionClosed    = errors.New("mcp: session closed")
	ErrPendingQueueFull = errors.New("mcp: pending request queue full")
	ErrBadSessionHeader = errors.New("mcp: bad Mcp-Session-Id header")
)

// rpcErrorBody is the JSON-RPC error envelope used for
// 400-class adapter errors.
type rpcErrorBody struct {
	JSONRPC string         `json:"jsonrpc"`
	Error   *jsonrpc.Error `json:"error"`
}

// writeJSONRPCError writes status with a {"jsonrpc":"2.0","error":{...}}
// body.
func writeJSONRPCError(w http.ResponseWriter, status int, code int64, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := rpcErrorBody{JSONRPC: "2.0", Error: jsonrpc.NewError(code, message, data)}
	_ = json.NewEncoder(w).Encode(body)
}

// writeBadJSON writes the plain (non-JSON-RPC-shaped) error body
// used for unparsable request bodies on the new transport.
func writeBadJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid JSON"})
}
