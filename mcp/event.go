package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Event is one SSE record: an optional event name, an optional id,
// and the data payload (possibly assembled from multiple "data:"
// lines joined by "\n", per the SSE framing rules).
type Event struct {
	Name string
	ID   string
	Data []byte
}

// writeEvent writes e to w using the server's strict framing:
// "event: <name>\r\ndata: <bytes>\r\n\r\n", with an optional "id:"
// line when e.ID is non-empty. The caller is responsible for
// flushing.
func writeEvent(w io.Writer, e Event) error {
	var buf bytes.Buffer
	if e.Name != "" {
		fmt.Fprintf(&buf, "event: %s\r\n", e.Name)
	}
	if e.ID != "" {
		fmt.Fprintf(&buf, "id: %s\r\n", e.ID)
	}
	for _, line := range bytes.Split(e.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// writeKeepalive writes the periodic ": ping\r\n\r\n" comment line.
func writeKeepalive(w io.Writer) error {
	_, err := io.WriteString(w, ": ping\r\n\r\n")
	return err
}

// scanEvents reads r line by line and yields one Event per blank-line
// terminated record, tolerating either "\r\n" or "\n" as the line
// ending (the strict server writer above always uses "\r\n"; this
// reader accepts both). A line with no colon is malformed and halts
// scanning with an error.
func scanEvents(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var events []Event
	var name, id string
	var data [][]byte
	haveAny := false

	flush := func() {
		if !haveAny {
			return
		}
		events = append(events, Event{Name: name, ID: id, Data: bytes.Join(data, []byte("\n"))})
		name, id, data, haveAny = "", "", nil, false
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return events, fmt.Errorf("mcp: malformed line %q", line)
		}
		key := line[:colon]
		val := line[colon+1:]
		val = strings.TrimPrefix(val, " ")
		switch key {
		case "event":
			name = val
			haveAny = true
		case "id":
			id = val
			haveAny = true
		case "data":
			data = append(data, []byte(val))
			haveAny = true
		default:
			// Unknown field names are tolerated and ignored.
			haveAny = true
		}
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	flush()
	return events, nil
}
