package transport

// Frame format used by the Framed transport. Every flush becomes one frame:
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │pt│fl│ bodyLen │    body ...    │
//	│ mtf  │01│  │  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
//
// The length prefix lets a reader pull a whole message off the stream before
// the protocol layer decodes it; the magic rejects peers that do not speak
// the framed transport (e.g. an unframed client on a framed port).

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	MagicByte1 byte = 0x6d // 'm'
	MagicByte2 byte = 0x74 // 't'
	MagicByte3 byte = 0x66 // 'f'
	Version    byte = 0x01
	HeaderSize int  = 10 // 3 (magic) + 1 (version) + 1 (protocol) + 1 (flags) + 4 (bodyLen)

	// DefaultMaxFrameSize bounds the body a reader is willing to allocate.
	DefaultMaxFrameSize uint32 = 16 << 20
)

var (
	ErrInvalidMagic     = errors.New("transport: invalid frame magic")
	ErrFrameTooLarge    = errors.New("transport: frame too large")
	ErrProtocolMismatch = errors.New("transport: frame protocol mismatch")
)

// FrameHeader is the fixed 10-byte frame header.
type FrameHeader struct {
	ProtocolType byte   // encoding of the body, see protocol.Type
	Flags        byte   // reserved, written as zero
	BodyLen      uint32 // body length in bytes
}

// EncodeFrame writes a complete frame (header + body) to w.
func EncodeFrame(w io.Writer, h *FrameHeader, body []byte) error {
	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicByte1, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = h.ProtocolType
	buf[5] = h.Flags
	binary.BigEndian.PutUint32(buf[6:10], h.BodyLen)
	// one write so that a frame is never split between two writers
	buf = append(buf, body...)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "transport: write frame")
	}
	return nil
}

// DecodeFrame reads a complete frame from r. Bodies larger than maxSize are
// rejected before any allocation.
func DecodeFrame(r io.Reader, maxSize uint32) (*FrameHeader, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicByte1 || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, errors.Wrapf(ErrInvalidMagic, "got %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("transport: unsupported frame version: %d", headerBuf[3])
	}

	h := &FrameHeader{
		ProtocolType: headerBuf[4],
		Flags:        headerBuf[5],
		BodyLen:      binary.BigEndian.Uint32(headerBuf[6:10]),
	}
	if maxSize > 0 && h.BodyLen > maxSize {
		return nil, nil, errors.Wrapf(ErrFrameTooLarge, "%d > %d", h.BodyLen, maxSize)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return h, body, nil
}
