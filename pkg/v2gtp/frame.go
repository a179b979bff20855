package v2gtp

import (
	"fmt"
	"io"
)

// Frame is a complete V2GTP frame.
type Frame struct {
	Type    PayloadType
	Payload []byte
}

// Encode returns the frame in wire format.
func (f *Frame) Encode() []byte {
	h := Header{PayloadType: f.Type, PayloadLength: uint32(len(f.Payload))}
	buf := make([]byte, HeaderSize+len(f.Payload))
	offset := h.EncodeTo(buf)
	copy(buf[offset:], f.Payload)
	return buf
}

// Encode frames an EXI payload.
func Encode(payload []byte) []byte {
	f := Frame{Type: PayloadEXI, Payload: payload}
	return f.Encode()
}

// Decode parses one complete frame. data must hold exactly one frame.
func Decode(data []byte) (*Frame, error) {
	var h Header
	n, err := h.Decode(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-n) != uint64(h.PayloadLength) {
		return nil, ErrPayloadLenMismatch
	}

	f := &Frame{Type: h.PayloadType}
	f.Payload = make([]byte, h.PayloadLength)
	copy(f.Payload, data[n:])
	return f, nil
}

// Reader reads frames from a byte stream.
type Reader struct {
	r          io.Reader
	maxPayload uint32
}

// NewReader creates a frame reader. maxPayload <= 0 uses DefaultMaxPayload.
func NewReader(r io.Reader, maxPayload int) *Reader {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Reader{r: r, maxPayload: uint32(maxPayload)}
}

// ReadFrame reads the next frame. It returns io.EOF if the stream ends
// cleanly between frames.
func (fr *Reader) ReadFrame() (*Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}

	var h Header
	if _, err := h.Decode(hdr[:]); err != nil {
		return nil, err
	}
	if h.PayloadLength > fr.maxPayload {
		return nil, ErrPayloadTooLong
	}

	f := &Frame{Type: h.PayloadType, Payload: make([]byte, h.PayloadLength)}
	if _, err := io.ReadFull(fr.r, f.Payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}
	return f, nil
}

// ReadFrame reads one frame from r with the default payload limit.
func ReadFrame(r io.Reader) (*Frame, error) {
	return NewReader(r, 0).ReadFrame()
}

// Writer writes frames to a byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a frame writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes f in a single Write call.
func (fw *Writer) WriteFrame(f *Frame) error {
	_, err := fw.w.Write(f.Encode())
	return err
}
