package client

import (
	"strings"
)

// legacyEvent is one record parsed off the legacy SSE fallback stream:
// an event type name and its associated data line.
type legacyEvent struct {
	kind string // event name; keepalive comments yield no event
	data string
}

// sseLineParser implements the tolerant, byte-split-safe parser the
// client-side adapter needs for the legacy fallback transport. It
// uses a manual buffering algorithm rather than bufio.Scanner:
// the event/record separator ("\r\n\r\n" or "\n\n") is pinned on first
// sight and used for the rest of the stream, and lines within a
// record are split on the single-separator form of whatever was
// pinned. This tolerance is required because the server is only
// guaranteed to emit "\r\n", while some intermediaries or test harnesses
// may normalize to "\n".
type sseLineParser struct {
	buf   []byte
	sep   string // "" until pinned; then "\r\n\r\n" or "\n\n"
	lineS string // the single-line form of sep
}

// feed appends data to the parser's buffer and returns every complete
// event newly available. Partial trailing data is retained for the
// next call, so feeding a stream one byte at a time yields the same
// sequence of events as feeding it in one blob.
func (p *sseLineParser) feed(data []byte) []legacyEvent {
	p.buf = append(p.buf, data...)

	if p.sep == "" {
		if strings.Contains(string(p.buf), "\r\n\r\n") {
			p.sep, p.lineS = "\r\n\r\n", "\r\n"
		} else if strings.Contains(string(p.buf), "\n\n") {
			p.sep, p.lineS = "\n\n", "\n"
		} else {
			return nil // not enough data yet to know which separator is in use
		}
	}

	var events []legacyEvent
	for {
		idx := strings.Index(string(p.buf), p.sep)
		if idx < 0 {
			break
		}
		chunk := string(p.buf[:idx])
		p.buf = p.buf[idx+len(p.sep):]
		if ev, ok := parseChunk(chunk, p.lineS); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseChunk parses one record's worth of lines (already separator-
// stripped of its trailing blank line) into an event, replicating the
// first-colon-split and keepalive detection.
func parseChunk(chunk, lineSep string) (legacyEvent, bool) {
	lines := strings.Split(chunk, lineSep)
	if len(lines) == 0 || lines[0] == "" {
		return legacyEvent{}, false
	}

	typ, key := splitFirstColon(lines[0])
	if typ == "" {
		// No colon-delimited type: a keepalive comment such as
		// ": ping" (key would start with "ping" once the leading
		// colon and space are consumed) or an unrecognized line.
		if strings.HasPrefix(strings.TrimSpace(key), "ping") {
			return legacyEvent{}, false
		}
		return legacyEvent{}, false
	}

	if typ != "event" {
		return legacyEvent{}, false
	}
	eventName := key

	if len(lines) < 2 {
		return legacyEvent{}, false
	}
	dtyp, dkey := splitFirstColon(lines[1])
	if dtyp != "data" {
		return legacyEvent{}, false
	}
	return legacyEvent{kind: eventName, data: dkey}, true
}

// splitFirstColon splits s at its first colon into a type and key,
// skipping exactly one space after the colon if present.
func splitFirstColon(s string) (typ, key string) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", s
	}
	typ = s[:i]
	rest := s[i+1:]
	key = strings.TrimPrefix(rest, " ")
	return typ, key
}
