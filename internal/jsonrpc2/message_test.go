package jsonrpc2

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	req := &Request{ID: Int64ID(1), Method: "ping", Params: json.RawMessage(`{"x":1}`)}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	gotReq, ok := got.(*Request)
	if !ok {
		t.Fatalf("decoded type = %T, want *Request", got)
	}
	if diff := cmp.Diff(req, gotReq, cmp.AllowUnexported(ID{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeNotificationRoundTrip(t *testing.T) {
	req := &Request{Method: "notify/x", Params: json.RawMessage(`{}`)}
	if !req.IsNotification() {
		t.Fatal("expected a notification (no id)")
	}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	gotReq := got.(*Request)
	if gotReq.ID.IsValid() {
		t.Error("decoded notification should not have a valid id")
	}
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	resp := &Response{ID: Int64ID(7), Result: json.RawMessage(`{"ok":true}`)}
	data, err := EncodeMessage(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	gotResp, ok := got.(*Response)
	if !ok {
		t.Fatalf("decoded type = %T, want *Response", got)
	}
	if string(gotResp.Result) != string(resp.Result) {
		t.Errorf("Result = %s, want %s", gotResp.Result, resp.Result)
	}
}

func TestEncodeDecodeErrorResponse(t *testing.T) {
	resp := &Response{ID: Int64ID(1), Error: NewError(CodeInvalidRequest, "bad", map[string]string{"reason": "x"})}
	data, err := EncodeMessage(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	gotResp := got.(*Response)
	if gotResp.Error == nil || gotResp.Error.Code != CodeInvalidRequest {
		t.Fatalf("Error = %+v, want code %d", gotResp.Error, CodeInvalidRequest)
	}
}

func TestHasID(t *testing.T) {
	if !HasID(json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)) {
		t.Error("expected HasID to be true")
	}
	if HasID(json.RawMessage(`{"jsonrpc":"2.0","method":"notify"}`)) {
		t.Error("expected HasID to be false when id is absent")
	}
	if HasID(json.RawMessage(`{"jsonrpc":"2.0","id":null,"method":"notify"}`)) {
		t.Error("expected HasID to be false when id is explicitly null")
	}
}

func TestStringID(t *testing.T) {
	id := StringID("abc")
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"abc"` {
		t.Errorf("got %s, want \"abc\"", data)
	}
}
