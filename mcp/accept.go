package mcp

import (
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// acceptsEventStream reports whether req's Accept header(s) contain
// the text/event-stream token, using httpguts for the exact token
// matching semantics net/http itself relies on.
func acceptsEventStream(req *http.Request) bool {
	for _, h := range req.Header.Values("Accept") {
		if httpguts.HeaderValuesContainsToken([]string{h}, "text/event-stream") {
			return true
		}
	}
	return false
}
