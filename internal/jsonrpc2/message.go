// Package jsonrpc2 implements the wire encoding for JSON-RPC 2.0
// messages: requests, notifications, responses, and error objects.
//
// It does not implement a transport or a dispatcher; those concerns
// live in the mcp and client packages. This package only knows how to
// tell a request apart from a response and how to marshal either one
// onto the wire.
package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ID is a JSON-RPC request identifier. Per JSON-RPC 2.0 it is a string, a
// number, or absent (for notifications). Absent is represented by the
// zero value, for which IsValid reports false.
type ID struct {
	name   string
	number int64
	isName bool
	isSet  bool
}

// Int64ID returns an ID holding the integer n.
func Int64ID(n int64) ID { return ID{number: n, isSet: true} }

// StringID returns an ID holding the string s.
func StringID(s string) ID { return ID{name: s, isName: true, isSet: true} }

// IsValid reports whether the ID was set (i.e. this is not a notification).
func (id ID) IsValid() bool { return id.isSet }

// Raw returns the ID's value as a string or int64, or nil if unset.
func (id ID) Raw() any {
	switch {
	case !id.isSet:
		return nil
	case id.isName:
		return id.name
	default:
		return id.number
	}
}

func (id ID) String() string {
	if id.isName {
		return id.name
	}
	return fmt.Sprintf("%d", id.number)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isName {
		return json.Marshal(id.name)
	}
	return json.Marshal(id.number)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID{number: n, isSet: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID{name: s, isName: true, isSet: true}
		return nil
	}
	return fmt.Errorf("jsonrpc2: invalid id %s", data)
}

// Message is the interface implemented by Request and Response.
type Message interface {
	// isJSONRPC2Message is unexported so only this package's types
	// can implement Message.
	isJSONRPC2Message()
}

const wireVersion = "2.0"

// wireRequest is the wire representation of a JSON-RPC request or
// notification.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// wireResponse is the wire representation of a JSON-RPC response.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// WireError is a JSON-RPC error object.
type WireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message)
}

// NewError builds a WireError, marshaling data if non-nil.
func NewError(code int64, message string, data any) *WireError {
	we := &WireError{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			we.Data = raw
		}
	}
	return we
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrInvalidParams and friends are convenience constructors used by
// callers that only need the standard codes.
func ErrInvalidParams(message string) *WireError { return NewError(CodeInvalidParams, message, nil) }
func ErrMethodNotFound(method string) *WireError {
	return NewError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", method), nil)
}
func ErrInvalidRequest(message string) *WireError {
	return NewError(CodeInvalidRequest, message, nil)
}

// Request is a JSON-RPC request. If ID.IsValid() is false, the
// request is a notification and must not receive a Response.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

func (*Request) isJSONRPC2Message() {}

// IsNotification reports whether r is a notification (no ID).
func (r *Request) IsNotification() bool { return !r.ID.IsValid() }

// Response is a JSON-RPC response, carrying exactly one of Result or
// Error.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *WireError
}

func (*Response) isJSONRPC2Message() {}

// EncodeMessage serializes msg (a *Request or *Response) to its
// compact JSON wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		wr := wireRequest{JSONRPC: wireVersion, Method: m.Method, Params: m.Params}
		if m.ID.IsValid() {
			id := m.ID
			wr.ID = &id
		}
		return json.Marshal(wr)
	case *Response:
		wr := wireResponse{JSONRPC: wireVersion, Error: m.Error}
		id := m.ID
		wr.ID = &id
		if m.Error == nil {
			wr.Result = m.Result
			if wr.Result == nil {
				wr.Result = json.RawMessage("null")
			}
		}
		return json.Marshal(wr)
	default:
		return nil, fmt.Errorf("jsonrpc2: cannot encode message of type %T", msg)
	}
}

// DecodeMessage parses data as a JSON-RPC request or response. It
// distinguishes the two by the presence of "method" (request) versus
// "result"/"error" (response).
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		Method *string          `json:"method"`
		Result *json.RawMessage `json:"result"`
		Error  *json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("jsonrpc2: %w", err)
	}
	if probe.Method != nil {
		var wr wireRequest
		if err := json.Unmarshal(data, &wr); err != nil {
			return nil, fmt.Errorf("jsonrpc2: %w", err)
		}
		req := &Request{Method: wr.Method, Params: wr.Params}
		if wr.ID != nil {
			req.ID = *wr.ID
		}
		return req, nil
	}
	if probe.Result != nil || probe.Error != nil {
		var wr wireResponse
		if err := json.Unmarshal(data, &wr); err != nil {
			return nil, fmt.Errorf("jsonrpc2: %w", err)
		}
		resp := &Response{Error: wr.Error}
		if wr.ID != nil {
			resp.ID = *wr.ID
		}
		if wr.Error == nil {
			resp.Result = wr.Result
		}
		return resp, nil
	}
	return nil, errors.New("jsonrpc2: message has neither method, result, nor error")
}

// HasID reports whether data carries a non-null "id" field, without
// otherwise validating it as a well-formed JSON-RPC message. Callers
// use this to tell a request apart from a notification before
// deciding whether to hold a socket open for a reply.
func HasID(data json.RawMessage) bool {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.ID) > 0 && string(probe.ID) != "null"
}
