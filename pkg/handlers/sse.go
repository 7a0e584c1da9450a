package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStreamUnsupported is returned when the response writer cannot flush.
var ErrStreamUnsupported = errors.New("streaming not supported")

// Stream writes Server-Sent Events to a long-lived response.
type Stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewStream prepares w for an event stream: it sets the SSE headers,
// clears the write deadline, and flushes the headers to the client.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamUnsupported, err)
	}

	// not every writer supports deadlines; the stream still works without
	_ = rc.SetWriteDeadline(time.Time{})

	return &Stream{w: w, rc: rc}, nil
}

// Send writes one event with v encoded as JSON in its data field.
func (s *Stream) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}

	return s.rc.Flush()
}
