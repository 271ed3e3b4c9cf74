package eventstream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event is one dispatched message.
type Event struct {
	ID   string
	Name string // "message" when the frame had no event field
	Data string
}

// Decoder parses an event stream into events.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
	retry   time.Duration
}

// NewDecoder reads frames from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	scanner.Split(scanLines)
	return &Decoder{scanner: scanner}
}

// LastEventID returns the most recent id field seen.
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Retry returns the last reconnection delay announced by the server, or
// zero if none was announced.
func (d *Decoder) Retry() time.Duration {
	return d.retry
}

// Next returns the next event. Frames that carry only comments or only a
// retry field do not produce an event. Returns io.EOF when the stream ends
// cleanly; a partially received frame at EOF is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		data    strings.Builder
		hasData bool
		name    string
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			ev := Event{ID: d.lastID, Name: name, Data: data.String()}
			if ev.Name == "" {
				ev.Name = "message"
			}
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = strings.TrimPrefix(line[i+1:], " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			name = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// scanLines splits on LF, CRLF or a lone CR.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell CR from CRLF.
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
