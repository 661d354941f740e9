package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: a 4-byte unsigned big-endian length followed by exactly that
// many payload bytes. A reader must consume the full length field and then
// the full payload before decoding; partial frames are never decoded.
const (
	lengthSize = 4

	// DefaultMaxFrame bounds a single frame. Anything larger is treated as
	// a corrupt stream rather than an allocation request.
	DefaultMaxFrame = 1 << 24
)

var (
	// ErrFrameTooLarge reports a length field above the configured limit.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)

// WriteFrame writes one length-prefixed frame to w. The caller flushes any
// buffered writer itself; a frame is not on the wire until then.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenbuf [lengthSize]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(payload)))
	if _, err := w.Write(lenbuf[:]); err != nil { return err }
	if _, err := w.Write(payload); err != nil { return err }
	return nil
}

// ReadFrame reads one full frame from r. io.EOF on a clean frame boundary
// means the peer closed the stream; EOF inside a frame surfaces as
// io.ErrUnexpectedEOF. A zero maxFrame falls back to DefaultMaxFrame.
func ReadFrame(r io.Reader, maxFrame uint32) ([]byte, error) {
	if maxFrame == 0 { maxFrame = DefaultMaxFrame }
	var lenbuf [lengthSize]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenbuf[:])
	if n > maxFrame {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) { err = io.ErrUnexpectedEOF }
		return nil, err
	}
	return buf, nil
}
