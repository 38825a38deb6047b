// Package jsonrpc exposes the wire-level JSON-RPC 2.0 types used by the
// transport adapters, re-exported from the internal codec so that
// transport authors outside this module never import internal/jsonrpc2
// directly.
package jsonrpc

import "github.com/mcpbridge/httpbridge/internal/jsonrpc2"

type (
	// ID is a JSON-RPC request ID (string or integer).
	ID = jsonrpc2.ID
	// Message is the union of Request and Response.
	Message = jsonrpc2.Message
	// Request is a JSON-RPC request or notification.
	Request = jsonrpc2.Request
	// Response is a JSON-RPC response, carrying a result or an error.
	Response = jsonrpc2.Response
	// Error is a JSON-RPC error object.
	Error = jsonrpc2.WireError
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)

// EncodeMessage serializes msg to its compact-JSON wire form.
func EncodeMessage(msg Message) ([]byte, error) { return jsonrpc2.EncodeMessage(msg) }

// DecodeMessage parses a JSON-RPC request or response from data.
func DecodeMessage(data []byte) (Message, error) { return jsonrpc2.DecodeMessage(data) }

// NewError builds an Error with the given code, message and optional data.
func NewError(code int64, message string, data any) *Error {
	return jsonrpc2.NewError(code, message, data)
}

// HasID reports whether a raw JSON-RPC object carries a non-null "id"
// field, distinguishing requests from notifications off the wire
// before a full decode.
func HasID(data []byte) bool { return jsonrpc2.HasID(data) }
