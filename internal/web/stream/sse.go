// Package stream writes server-sent event responses.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnsupported is returned when the response cannot be flushed.
var ErrUnsupported = errors.New("streaming not supported")

// Event is one server-sent event.
type Event struct {
	ID    string
	Event string
	Data  string
	// Retry is the reconnection delay the client should use.
	Retry time.Duration
}

// SSE writes events to a response and flushes after each.
type SSE struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSE sets the event-stream headers, lifts the write deadline of the
// connection and commits the response.
func NewSSE(w http.ResponseWriter) (*SSE, error) {
	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// Servers without write deadlines report ErrNotSupported; that is fine.
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return &SSE{w: w, rc: rc}, nil
}

// Send writes e. Multi-line data is split over several data fields.
func (s *SSE) Send(e Event) error {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Event)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry.Milliseconds())
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return s.write(b.String())
}

// JSON sends v encoded as the data of an event named event.
func (s *SSE) JSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	return s.Send(Event{Event: event, Data: string(data)})
}

// Comment writes a comment line, which clients ignore. It keeps idle
// connections open through proxies.
func (s *SSE) Comment(text string) error {
	return s.write(": " + text + "\n\n")
}

func (s *SSE) write(str string) error {
	if _, err := s.w.Write([]byte(str)); err != nil {
		return err
	}
	return s.rc.Flush()
}
