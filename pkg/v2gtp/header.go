// Package v2gtp implements the V2G transfer protocol framing that carries
// encoded messages over a byte stream.
//
// Every frame is an 8-byte header followed by the payload:
//
//	version (1) | inverse version (1) | payload type (2, BE) | payload length (4, BE)
package v2gtp

import (
	"encoding/binary"
	"errors"
)

// Framing constants.
const (
	// Version is the only supported protocol version.
	Version uint8 = 0x01

	// InverseVersion is the bitwise inverse of Version.
	InverseVersion uint8 = 0xFE

	// HeaderSize is the fixed header size in bytes.
	HeaderSize = 8

	// DefaultMaxPayload is the default payload size limit.
	DefaultMaxPayload = 64 * 1024
)

// Framing errors.
var (
	ErrFrameTooShort      = errors.New("v2gtp: frame too short")
	ErrInvalidVersion     = errors.New("v2gtp: invalid protocol version")
	ErrUnknownPayloadType = errors.New("v2gtp: unknown payload type")
	ErrPayloadTooLong     = errors.New("v2gtp: payload exceeds maximum size")
	ErrPayloadLenMismatch = errors.New("v2gtp: payload length mismatch")
	ErrStreamReadFailed   = errors.New("v2gtp: failed to read from stream")
)

// PayloadType identifies the frame content.
type PayloadType uint16

const (
	// PayloadEXI carries an encoded protocol message.
	PayloadEXI PayloadType = 0x8001

	// PayloadSDPRequest carries a discovery request.
	PayloadSDPRequest PayloadType = 0x9000

	// PayloadSDPResponse carries a discovery response.
	PayloadSDPResponse PayloadType = 0x9001
)

// String returns a human-readable name for the payload type.
func (p PayloadType) String() string {
	switch p {
	case PayloadEXI:
		return "EXI"
	case PayloadSDPRequest:
		return "SDPRequest"
	case PayloadSDPResponse:
		return "SDPResponse"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the payload type is a defined value.
func (p PayloadType) IsValid() bool {
	return p == PayloadEXI || p == PayloadSDPRequest || p == PayloadSDPResponse
}

// Header is the V2GTP frame header.
type Header struct {
	PayloadType   PayloadType
	PayloadLength uint32
}

// EncodeTo writes the header into buf, which must hold HeaderSize bytes.
// Returns the number of bytes written.
func (h *Header) EncodeTo(buf []byte) int {
	buf[0] = Version
	buf[1] = InverseVersion
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.PayloadType))
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	return HeaderSize
}

// Decode parses a header from data.
// Returns the number of bytes consumed.
func (h *Header) Decode(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, ErrFrameTooShort
	}
	if data[0] != Version || data[1] != InverseVersion {
		return 0, ErrInvalidVersion
	}
	h.PayloadType = PayloadType(binary.BigEndian.Uint16(data[2:4]))
	if !h.PayloadType.IsValid() {
		return 0, ErrUnknownPayloadType
	}
	h.PayloadLength = binary.BigEndian.Uint32(data[4:8])
	return HeaderSize, nil
}
