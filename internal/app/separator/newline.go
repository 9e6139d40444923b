package separator

import (
	"bytes"
	"strings"
)

// ByNewline emits one event per '\n'-terminated line. The delimiter is
// excluded from the emitted event. Residue after the last newline is
// retained across Feed calls and is NEVER implicitly flushed — at stream
// end (no further Feed calls) the residue is simply discarded. This is a
// deliberate design choice, not an oversight: see the "no implicit flush"
// open question.
type ByNewline struct {
	trim bool
	sink Sink
	buf  []byte
}

// NewByNewline constructs a by-newline separator feeding sink.
func NewByNewline(trim bool, sink Sink) *ByNewline {
	return &ByNewline{trim: trim, sink: sink}
}

// Feed appends data to the retained buffer and emits every complete line.
func (s *ByNewline) Feed(data []byte) {
	s.buf = append(s.buf, data...)

	for {
		idx := bytes.IndexByte(s.buf, '\n')
		if idx < 0 {
			return
		}

		line := string(s.buf[:idx])
		s.buf = s.buf[idx+1:]

		if s.trim {
			line = strings.TrimSpace(line)
		}

		s.sink(line)
	}
}
