package transport

import (
	"bytes"

	"github.com/pkg/errors"
)

// Framed sends each Flush as one frame over the wrapped transport and
// serves reads out of one received frame at a time.
type Framed struct {
	trans        Transport
	protocolType byte
	maxFrameSize uint32

	wbuf bytes.Buffer
	rbuf bytes.Reader
}

// NewFramed wraps trans. protocolType is stamped on every outgoing frame and
// checked on every incoming one. maxFrameSize of 0 selects DefaultMaxFrameSize.
func NewFramed(trans Transport, protocolType byte, maxFrameSize uint32) *Framed {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Framed{
		trans:        trans,
		protocolType: protocolType,
		maxFrameSize: maxFrameSize,
	}
}

func (f *Framed) Read(p []byte) (int, error) {
	for f.rbuf.Len() == 0 {
		if err := f.readFrame(); err != nil {
			return 0, err
		}
	}
	return f.rbuf.Read(p)
}

func (f *Framed) readFrame() error {
	h, body, err := DecodeFrame(f.trans, f.maxFrameSize)
	if err != nil {
		return err
	}
	if h.ProtocolType != f.protocolType {
		return errors.Wrapf(ErrProtocolMismatch, "got %d, want %d", h.ProtocolType, f.protocolType)
	}
	f.rbuf.Reset(body)
	return nil
}

func (f *Framed) Write(p []byte) (int, error) {
	if !f.trans.IsOpen() {
		return 0, ErrClosed
	}
	if uint32(f.wbuf.Len()+len(p)) > f.maxFrameSize {
		return 0, errors.Wrapf(ErrFrameTooLarge, "%d > %d", f.wbuf.Len()+len(p), f.maxFrameSize)
	}
	return f.wbuf.Write(p)
}

// Flush emits the buffered writes as one frame and flushes the wrapped
// transport. Flushing an empty buffer sends nothing.
func (f *Framed) Flush() error {
	if f.wbuf.Len() == 0 {
		return f.trans.Flush()
	}
	body := f.wbuf.Bytes()
	err := EncodeFrame(f.trans, &FrameHeader{
		ProtocolType: f.protocolType,
		BodyLen:      uint32(len(body)),
	}, body)
	f.wbuf.Reset()
	if err != nil {
		return err
	}
	return f.trans.Flush()
}

func (f *Framed) Close() error {
	return f.trans.Close()
}

func (f *Framed) IsOpen() bool {
	return f.trans.IsOpen()
}
