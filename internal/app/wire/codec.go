package wire

import (
	"bufio"
	"encoding/json"

	appErrors "logwatch/internal/app/errors"
)

// Encode serialises v and appends the NUL frame terminator.
func Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	b = append(b, 0)

	return b, nil
}

// MaxFrameSize bounds a single frame to defend against a misbehaving peer
// that never sends a NUL terminator.
const MaxFrameSize = 1 << 20

// Decoder reads NUL-terminated JSON frames off a byte stream, accumulating
// partial reads exactly as the per-client inbound buffer described in the
// broadcast bus design. It is not safe for concurrent use by multiple
// goroutines — callers use one Decoder per direction per connection.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for frame-at-a-time reads.
func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

// ReadFrame blocks until a full NUL-terminated frame is available and
// returns its bytes without the terminator. Returns the underlying read
// error (typically io.EOF) when the stream ends before a frame completes.
func (d *Decoder) ReadFrame() ([]byte, error) {
	var frame []byte

	for {
		chunk, err := d.r.ReadSlice(0)
		frame = append(frame, chunk...)

		if len(frame) > MaxFrameSize {
			return nil, appErrors.ErrFrameTooLarge
		}

		if err == nil {
			break
		}

		if err != bufio.ErrBufferFull {
			return nil, err
		}
	}

	return frame[:len(frame)-1], nil
}

// DecodeEnvelope sniffs the `type` field of a raw inbound control frame.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, appErrors.ErrFrameMalformed
	}

	return env, nil
}

// DecodeInto unmarshals frame into v, wrapping any failure as
// ErrFrameMalformed.
func DecodeInto(frame []byte, v interface{}) error {
	if err := json.Unmarshal(frame, v); err != nil {
		return appErrors.ErrFrameMalformed
	}

	return nil
}
