package tlv

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// Writer encodes elements to an io.Writer.
type Writer struct {
	w     io.Writer
	depth int // Open complex elements
	buf   [binary.MaxVarintLen64 + 1]byte
}

// NewWriter creates a new Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// writeHeader writes the control octet and tag.
func (w *Writer) writeHeader(elemType ElementType, tag Tag) error {
	if tag == 0 {
		return ErrInvalidTag
	}
	w.buf[0] = byte(elemType)
	n := binary.PutUvarint(w.buf[1:], uint64(tag))
	_, err := w.w.Write(w.buf[:1+n])
	return err
}

func (w *Writer) writeUvarint(v uint64) error {
	n := binary.PutUvarint(w.buf[:], v)
	_, err := w.w.Write(w.buf[:n])
	return err
}

// PutUint writes an unsigned integer with the given tag.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	if err := w.writeHeader(ElementTypeUint, tag); err != nil {
		return err
	}
	return w.writeUvarint(v)
}

// PutInt writes a signed integer with the given tag.
func (w *Writer) PutInt(tag Tag, v int64) error {
	if err := w.writeHeader(ElementTypeInt, tag); err != nil {
		return err
	}
	return w.writeUvarint(zigzag(v))
}

// PutEnum writes the index of an enumeration value with the given tag.
func (w *Writer) PutEnum(tag Tag, index uint64) error {
	if err := w.writeHeader(ElementTypeEnum, tag); err != nil {
		return err
	}
	return w.writeUvarint(index)
}

// PutBool writes a boolean with the given tag.
func (w *Writer) PutBool(tag Tag, v bool) error {
	elemType := ElementTypeFalse
	if v {
		elemType = ElementTypeTrue
	}
	return w.writeHeader(elemType, tag)
}

// PutString writes a UTF-8 string with the given tag.
// Returns ErrInvalidUTF8 if the string is not valid UTF-8.
func (w *Writer) PutString(tag Tag, v string) error {
	if !utf8.ValidString(v) {
		return ErrInvalidUTF8
	}
	return w.writeStringValue(ElementTypeString, tag, []byte(v))
}

// PutBytes writes an octet string with the given tag.
func (w *Writer) PutBytes(tag Tag, v []byte) error {
	return w.writeStringValue(ElementTypeBytes, tag, v)
}

// StartElement opens a complex element with the given tag.
func (w *Writer) StartElement(tag Tag) error {
	if err := w.writeHeader(ElementTypeStart, tag); err != nil {
		return err
	}
	w.depth++
	return nil
}

// EndElement closes the innermost complex element.
func (w *Writer) EndElement() error {
	if w.depth == 0 {
		return ErrNotInElement
	}
	w.depth--
	_, err := w.w.Write([]byte{byte(ElementTypeEnd)})
	return err
}

// Depth returns the number of open complex elements.
func (w *Writer) Depth() int {
	return w.depth
}

// writeStringValue writes a length-prefixed value.
func (w *Writer) writeStringValue(elemType ElementType, tag Tag, data []byte) error {
	if len(data) > MaxValueLength {
		return ErrValueTooLong
	}
	if err := w.writeHeader(elemType, tag); err != nil {
		return err
	}
	if err := w.writeUvarint(uint64(len(data))); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}
