package exi

import (
	"github.com/backkem/v2g/pkg/grammar"
)

// Header layout constants.
const (
	// FormatVersion is the only supported body format version.
	FormatVersion uint8 = 0

	// HeaderSize is the fixed header size: distinguishing bits and version,
	// options, schema fingerprint.
	HeaderSize = 2 + grammar.FingerprintSize

	distinguishingBits = 0x80
	distinguishingMask = 0xC0
	versionMask        = 0x3F
)

// Header precedes every encoded body.
type Header struct {
	Version     uint8
	Options     grammar.Options
	Fingerprint grammar.Fingerprint
}

// EncodeTo writes the header into buf, which must hold HeaderSize bytes.
// Returns the number of bytes written.
func (h *Header) EncodeTo(buf []byte) int {
	buf[0] = distinguishingBits | (h.Version & versionMask)
	buf[1] = byte(h.Options)
	copy(buf[2:HeaderSize], h.Fingerprint[:])
	return HeaderSize
}

// Decode parses a header from data.
// Returns the number of bytes consumed.
func (h *Header) Decode(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, ErrHeaderTooShort
	}
	if data[0]&distinguishingMask != distinguishingBits {
		return 0, ErrInvalidHeader
	}
	h.Version = data[0] & versionMask
	h.Options = grammar.Options(data[1])
	copy(h.Fingerprint[:], data[2:HeaderSize])
	return HeaderSize, nil
}

// check verifies the header was produced for the given grammar cache.
func (h *Header) check(cache *grammar.Cache) error {
	if h.Version != FormatVersion {
		return ErrUnsupportedVersion
	}
	if h.Options != cache.Options() {
		return ErrOptionsMismatch
	}
	if h.Fingerprint != cache.Schema().Fingerprint() {
		return ErrSchemaMismatch
	}
	return nil
}
