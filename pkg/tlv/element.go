// Package tlv implements the compact element stream that carries grammar
// events on the wire.
//
// Each element starts with a control octet holding the element type. All
// elements except the end marker are followed by a tag, the grammar code of
// the element, as an unsigned varint. Values follow the tag:
//
//	Uint, Enum     unsigned varint
//	Int            zig-zag varint
//	String, Bytes  varint length + octets
//	True, False    no value
//	Start, End     no value
//
// A Start element opens a complex element that is closed by End.
package tlv

// MaxValueLength bounds the length prefix of strings and octet strings.
const MaxValueLength = 1 << 20

// Tag is the grammar code of an element. Tag 0 is reserved.
type Tag uint32

// ElementType identifies the kind of an element in its control octet.
type ElementType uint8

const (
	ElementTypeStart  ElementType = 0x01 // Opens a complex element
	ElementTypeEnd    ElementType = 0x02 // Closes the innermost complex element
	ElementTypeUint   ElementType = 0x03 // Unsigned varint
	ElementTypeInt    ElementType = 0x04 // Zig-zag varint
	ElementTypeFalse  ElementType = 0x05 // Boolean false
	ElementTypeTrue   ElementType = 0x06 // Boolean true
	ElementTypeString ElementType = 0x07 // UTF-8 string
	ElementTypeBytes  ElementType = 0x08 // Octet string
	ElementTypeEnum   ElementType = 0x09 // Enumeration index
)

// String returns the string representation of the element type.
func (e ElementType) String() string {
	switch e {
	case ElementTypeStart:
		return "Start"
	case ElementTypeEnd:
		return "End"
	case ElementTypeUint:
		return "Uint"
	case ElementTypeInt:
		return "Int"
	case ElementTypeFalse:
		return "False"
	case ElementTypeTrue:
		return "True"
	case ElementTypeString:
		return "String"
	case ElementTypeBytes:
		return "Bytes"
	case ElementTypeEnum:
		return "Enum"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the element type is defined.
func (e ElementType) IsValid() bool {
	return e >= ElementTypeStart && e <= ElementTypeEnum
}

// IsBool returns true if the element type is a boolean.
func (e ElementType) IsBool() bool {
	return e == ElementTypeFalse || e == ElementTypeTrue
}

// IsString returns true if the element type carries a length-prefixed value.
func (e ElementType) IsString() bool {
	return e == ElementTypeString || e == ElementTypeBytes
}

// HasTag returns true if a tag follows the control octet.
func (e ElementType) HasTag() bool {
	return e != ElementTypeEnd
}

// zigzag maps signed integers to unsigned so small magnitudes stay short.
func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
