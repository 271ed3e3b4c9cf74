// Package eventstream reads and writes the text/event-stream wire format
// used by the /events endpoint.
package eventstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Encoder writes event-stream frames, flushing after each one.
type Encoder struct {
	w     io.Writer
	flush func() error
}

// NewEncoder wraps w. Frames written to an http.ResponseWriter are flushed
// through http.ResponseController, so wrapped writers that expose Unwrap
// still reach the connection.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	switch v := w.(type) {
	case http.ResponseWriter:
		e.flush = http.NewResponseController(v).Flush
	case http.Flusher:
		e.flush = func() error {
			v.Flush()
			return nil
		}
	}
	return e
}

// Data writes a message frame. Multi-line payloads are split across
// several data fields so that the decoder rejoins them with "\n".
func (e *Encoder) Data(payload string) error {
	var b strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return e.write(b.String())
}

// Comment writes a comment line. Clients ignore it; it keeps idle
// connections and proxies alive.
func (e *Encoder) Comment(text string) error {
	return e.write(": " + text + "\n\n")
}

// Retry tells the client how long to wait before reconnecting.
func (e *Encoder) Retry(d time.Duration) error {
	return e.write(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()))
}

func (e *Encoder) write(frame string) error {
	if _, err := io.WriteString(e.w, frame); err != nil {
		return err
	}
	if e.flush == nil {
		return nil
	}
	if err := e.flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
