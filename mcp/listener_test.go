package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// recordingBackend captures NewSession and Received calls for
// assertions; SessionClosed is ignored. Tests drive Send through the
// Listener returned by newTestListener.
type recordingBackend struct {
	newSessions []string
	received    []receivedCall
}

type receivedCall struct {
	session string
	object  string
}

func (b *recordingBackend) NewSession(sessionID string) {
	b.newSessions = append(b.newSessions, sessionID)
}
func (b *recordingBackend) SessionClosed(string) {}
func (b *recordingBackend) Received(sessionID string, object []byte) {
	b.received = append(b.received, receivedCall{sessionID, string(object)})
}

// readSSERecord accumulates bytes from r until a complete
// "...\r\n\r\n"-terminated record is available, tolerating however the
// underlying transport happens to chunk the bytes.
func readSSERecord(r io.Reader) (string, error) {
	buf := make([]byte, 0, 256)
	tmp := make([]byte, 64)
	for {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if strings.HasSuffix(string(buf), "\r\n\r\n") {
				return string(buf), nil
			}
		}
		if err != nil {
			return string(buf), err
		}
	}
}

func newTestListener(t *testing.T, backend Backend) (*Listener, *httptest.Server) {
	t.Helper()
	l := NewListener(backend, Options{SSEKeepaliveInterval: time.Hour})
	srv := httptest.NewServer(l.srv.Handler)
	t.Cleanup(srv.Close)
	return l, srv
}

// TestLegacyHappyPath exercises the full legacy round trip: GET /sse, POST
// /messages/, backend send, SSE delivery.
func TestLegacyHappyPath(t *testing.T) {
	backend := &recordingBackend{}
	l, srv := newTestListener(t, backend)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/sse", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	first, err := readSSERecord(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(first, "event: endpoint\r\ndata: /messages/?session_id=") {
		t.Fatalf("unexpected first event: %q", first)
	}
	sessionID := strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(first, "\r\n\r\n"), "event: endpoint\r\ndata: /messages/?session_id="))

	if len(backend.newSessions) != 1 || backend.newSessions[0] != sessionID {
		t.Fatalf("NewSession not raised with %q: %v", sessionID, backend.newSessions)
	}

	postResp, err := http.Post(srv.URL+"/messages/?session_id="+sessionID, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer postResp.Body.Close()
	body, _ := io.ReadAll(postResp.Body)
	if string(body) != "Accept" {
		t.Errorf("POST /messages/ body = %q, want %q", body, "Accept")
	}
	if postResp.StatusCode != http.StatusOK {
		t.Errorf("POST /messages/ status = %d, want 200", postResp.StatusCode)
	}

	if len(backend.received) != 1 || backend.received[0].session != sessionID {
		t.Fatalf("backend did not receive the message: %v", backend.received)
	}

	l.Send(sessionID, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))

	got, err := readSSERecord(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	want := "event: message\r\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\r\n\r\n"
	if got != want {
		t.Errorf("sse message = %q, want %q", got, want)
	}
}

// TestNewProtocolStrictRejection checks that POST /mcp without a session
// header is rejected with 400.
func TestNewProtocolStrictRejection(t *testing.T) {
	_, srv := newTestListener(t, &recordingBackend{})

	resp, err := http.Post(srv.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":0}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code int64 `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != -32600 {
		t.Errorf("error.code = %d, want -32600", body.Error.Code)
	}
}

// TestNewProtocolHappyPath checks that GET /mcp establishes a session,
// then POST /mcp with the header gets the backend's response synchronously.
func TestNewProtocolHappyPath(t *testing.T) {
	backend := &recordingBackend{}
	l, srv := newTestListener(t, backend)

	getResp, err := http.Get(srv.URL + "/mcp")
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNoContent {
		t.Fatalf("GET /mcp status = %d, want 204", getResp.StatusCode)
	}
	sessionID := getResp.Header.Get(sessionIDHeader)
	if sessionID == "" {
		t.Fatal("missing Mcp-Session-Id response header")
	}
	if len(backend.newSessions) != 1 || backend.newSessions[0] != sessionID {
		t.Fatalf("NewSession not raised: %v", backend.newSessions)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
			strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
		req.Header.Set(sessionIDHeader, sessionID)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Error(err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("POST /mcp status = %d, want 200", resp.StatusCode)
		}
		if got := resp.Header.Get(sessionIDHeader); got != sessionID {
			t.Errorf("response session header = %q, want %q", got, sessionID)
		}
		body, _ := io.ReadAll(resp.Body)
		want := `{"jsonrpc":"2.0","id":1,"result":{}}`
		if diff := cmp.Diff(want, string(body)); diff != "" {
			t.Errorf("response body mismatch (-want +got):\n%s", diff)
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		if len(backend.received) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("backend never received the request")
		case <-time.After(time.Millisecond):
		}
	}

	l.Send(sessionID, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	<-done
}

// TestNotificationACK checks that a notification posted to /mcp is
// acknowledged immediately without waiting on the backend.
func TestNotificationACK(t *testing.T) {
	backend := &recordingBackend{}
	_, srv := newTestListener(t, backend)

	getResp, err := http.Get(srv.URL + "/mcp")
	if err != nil {
		t.Fatal(err)
	}
	sessionID := getResp.Header.Get(sessionIDHeader)
	getResp.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"notify/x","params":{}}`))
	req.Header.Set(sessionIDHeader, sessionID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Length"); got != "0" {
		t.Errorf("Content-Length = %q, want %q", got, "0")
	}
	if got := resp.Header.Get(sessionIDHeader); got != sessionID {
		t.Errorf("session header = %q, want %q", got, sessionID)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("body = %q, want empty", body)
	}
}

// TestStaleSessionRejection checks that an unknown session id is
// rejected with 400.
func TestStaleSessionRejection(t *testing.T) {
	_, srv := newTestListener(t, &recordingBackend{})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	req.Header.Set(sessionIDHeader, "11111111-1111-1111-1111-111111111111")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code int64 `json:"code"`
			Data struct {
				SessionID string `json:"sessionId"`
				Reason    string `json:"reason"`
			} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != -32600 {
		t.Errorf("error.code = %d, want -32600", body.Error.Code)
	}
	if body.Error.Data.Reason != "session_not_found" {
		t.Errorf("error.data.reason = %q, want session_not_found", body.Error.Data.Reason)
	}
}

// TestDeleteDrainsPendings checks that DELETE /mcp unblocks any requests
// still waiting on a backend response.
func TestDeleteDrainsPendings(t *testing.T) {
	backend := &recordingBackend{}
	_, srv := newTestListener(t, backend)

	getResp, err := http.Get(srv.URL + "/mcp")
	if err != nil {
		t.Fatal(err)
	}
	sessionID := getResp.Header.Get(sessionIDHeader)
	getResp.Body.Close()

	postDone := make(chan *http.Response, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
				strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":`+strconv.Itoa(i)+`}`))
			req.Header.Set(sessionIDHeader, sessionID)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Log(err)
				postDone <- nil
				return
			}
			postDone <- resp
		}()
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(backend.received) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("backend never received both requests")
		case <-time.After(time.Millisecond):
		}
	}

	delReq, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	delReq.Header.Set(sessionIDHeader, sessionID)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatal(err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", delResp.StatusCode)
	}
	if got := delResp.Header.Get("Content-Length"); got != "0" {
		t.Errorf("DELETE Content-Length = %q, want 0", got)
	}

	for i := 0; i < 2; i++ {
		resp := <-postDone
		if resp != nil {
			resp.Body.Close()
		}
	}
}

