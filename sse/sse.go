// Package sse implements the WHATWG event-stream grammar: a byte-to-event
// framer that tolerates arbitrary chunk boundaries, split multi-byte UTF-8
// codepoints, and any mixture of CR, LF, and CRLF line terminators.
package sse

import (
	"unicode/utf8"

	"github.com/llmclient/llmclient/llmerr"
)

const defaultMaxLineSize = 1 << 20 // 1 MiB

// Event is one dispatched SSE event: the recognized fields plus the
// accumulated, newline-joined data payload.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry string
}

// Option configures a Framer.
type Option func(*Framer)

// WithMaxLineSize caps the partial-line buffer. Feed returns a Framing
// error once an in-progress line exceeds this many bytes. A value <= 0
// disables the cap.
func WithMaxLineSize(n int) Option {
	return func(f *Framer) { f.maxLineSize = n }
}

// Framer is a streaming SSE parser. It is not safe for concurrent use by
// multiple goroutines; feed it from a single reader loop.
type Framer struct {
	maxLineSize int

	pending    []byte
	trailingCR bool

	eventField string
	dataLines  []string
	idField    string
	retryField string
	sawField   bool
}

// NewFramer constructs a Framer with the given options applied.
func NewFramer(opts ...Option) *Framer {
	f := &Framer{maxLineSize: defaultMaxLineSize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feed parses chunk, appending any dispatched events to the returned
// slice. Empty chunks are valid (a no-op). chunk may end mid-line,
// mid-terminator, or mid-codepoint; state carries to the next Feed call.
func (f *Framer) Feed(chunk []byte) ([]Event, error) {
	var events []Event
	n := len(chunk)
	i := 0

	if f.trailingCR && n > 0 {
		f.trailingCR = false
		if chunk[0] == '\n' {
			i = 1
		}
	}

	lineStart := i
	for i < n {
		c := chunk[i]
		if c != '\n' && c != '\r' {
			i++
			continue
		}

		line := f.takePending(chunk[lineStart:i])

		atChunkEnd := i+1 == n
		if c == '\r' {
			if i+1 < n && chunk[i+1] == '\n' {
				i++
			} else if atChunkEnd {
				f.trailingCR = true
			}
		}

		if err := f.processLine(line, &events); err != nil {
			return events, err
		}

		i++
		lineStart = i
	}

	if lineStart < n {
		f.pending = append(f.pending, chunk[lineStart:n]...)
		if f.maxLineSize > 0 && len(f.pending) > f.maxLineSize {
			return events, llmerr.Framing("buffer exceeded")
		}
	}

	return events, nil
}

// takePending returns pending+tail as a single slice and clears pending.
func (f *Framer) takePending(tail []byte) []byte {
	if len(f.pending) == 0 {
		return tail
	}
	line := append(f.pending, tail...)
	f.pending = nil
	return line
}

// Close flushes any dangling state at upstream EOF. A nonempty partial
// line with no terminator is a Framing "incomplete stream" error (data would
// otherwise be silently dropped); an in-progress event with fields
// already parsed but no terminating blank line is also an error. A
// Framer that ended cleanly on a dispatched event returns no events and
// no error.
func (f *Framer) Close() ([]Event, error) {
	if len(f.pending) > 0 {
		return nil, llmerr.Framing("incomplete stream: dangling partial line without terminator")
	}
	if f.sawField {
		return nil, llmerr.Framing("incomplete stream: in-progress event never dispatched")
	}
	return nil, nil
}

func (f *Framer) processLine(line []byte, events *[]Event) error {
	if len(line) == 0 {
		f.dispatch(events)
		return nil
	}

	if !utf8.Valid(line) {
		return llmerr.Framing("invalid utf-8 in line")
	}

	if line[0] == ':' {
		return nil
	}

	field, value := splitField(line)
	f.sawField = true
	switch field {
	case "event":
		f.eventField = value
	case "data":
		f.dataLines = append(f.dataLines, value)
	case "id":
		f.idField = value
	case "retry":
		f.retryField = value
	default:
		// Unrecognized fields are ignored per the grammar, but still
		// count toward "an in-progress event" for Close's
		// incomplete-stream check via sawField above.
	}
	return nil
}

func splitField(line []byte) (field, value string) {
	for i, b := range line {
		if b == ':' {
			field = string(line[:i])
			rest := line[i+1:]
			if len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			return field, string(rest)
		}
	}
	return string(line), ""
}

func (f *Framer) dispatch(events *[]Event) {
	hasData := len(f.dataLines) > 0
	hasOther := f.eventField != "" || f.idField != "" || f.retryField != ""
	if hasData || hasOther {
		data := ""
		if hasData {
			for i, l := range f.dataLines {
				if i > 0 {
					data += "\n"
				}
				data += l
			}
		}
		*events = append(*events, Event{
			Event: f.eventField,
			Data:  data,
			ID:    f.idField,
			Retry: f.retryField,
		})
	}
	f.eventField = ""
	f.dataLines = nil
	f.idField = ""
	f.retryField = ""
	f.sawField = false
}
