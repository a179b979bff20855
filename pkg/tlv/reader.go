package tlv

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

// byteReader is the input a Reader needs for varints and values.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader decodes elements from an io.Reader.
//
// Values are read eagerly by Next, so the accessors never touch the
// underlying reader.
type Reader struct {
	r     byteReader
	depth int

	// Current element state
	hasElement bool
	elemType   ElementType
	tag        Tag
	num        uint64
	data       []byte
}

// NewReader creates a new Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// Next advances to the next element.
// Returns io.EOF when the input ends on an element boundary outside any
// open element, and io.ErrUnexpectedEOF when it ends anywhere else.
func (r *Reader) Next() error {
	r.hasElement = false
	r.data = nil
	r.num = 0

	ctrl, err := r.r.ReadByte()
	if err != nil {
		if err == io.EOF && r.depth > 0 {
			return ErrElementNotClosed
		}
		return err
	}

	elemType := ElementType(ctrl)
	if !elemType.IsValid() {
		return ErrInvalidElementType
	}

	var tag Tag
	if elemType.HasTag() {
		v, err := r.readUvarint()
		if err != nil {
			return err
		}
		if v == 0 || v > uint64(^uint32(0)) {
			return ErrInvalidTag
		}
		tag = Tag(v)
	}

	switch elemType {
	case ElementTypeStart:
		r.depth++
	case ElementTypeEnd:
		if r.depth == 0 {
			return ErrNotInElement
		}
		r.depth--
	case ElementTypeUint, ElementTypeInt, ElementTypeEnum:
		if r.num, err = r.readUvarint(); err != nil {
			return err
		}
	case ElementTypeString, ElementTypeBytes:
		if err := r.readStringValue(elemType); err != nil {
			return err
		}
	}

	r.elemType = elemType
	r.tag = tag
	r.hasElement = true
	return nil
}

func (r *Reader) readUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, err
		}
		return 0, ErrOverflow
	}
	return v, nil
}

func (r *Reader) readStringValue(elemType ElementType) error {
	length, err := r.readUvarint()
	if err != nil {
		return err
	}
	if length > MaxValueLength {
		return ErrValueTooLong
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if elemType == ElementTypeString && !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	r.data = data
	return nil
}

// Type returns the type of the current element.
func (r *Reader) Type() ElementType {
	return r.elemType
}

// Tag returns the tag of the current element. End markers have tag 0.
func (r *Reader) Tag() Tag {
	return r.tag
}

// HasElement returns true if there is a current element.
func (r *Reader) HasElement() bool {
	return r.hasElement
}

// Depth returns the number of open complex elements.
func (r *Reader) Depth() int {
	return r.depth
}

// Uint returns the current element as an unsigned integer.
func (r *Reader) Uint() (uint64, error) {
	if err := r.expect(ElementTypeUint); err != nil {
		return 0, err
	}
	return r.num, nil
}

// Int returns the current element as a signed integer.
func (r *Reader) Int() (int64, error) {
	if err := r.expect(ElementTypeInt); err != nil {
		return 0, err
	}
	return unzigzag(r.num), nil
}

// Enum returns the current element as an enumeration index.
func (r *Reader) Enum() (uint64, error) {
	if err := r.expect(ElementTypeEnum); err != nil {
		return 0, err
	}
	return r.num, nil
}

// Bool returns the current element as a boolean.
func (r *Reader) Bool() (bool, error) {
	if !r.hasElement {
		return false, ErrNoElement
	}
	if !r.elemType.IsBool() {
		return false, ErrTypeMismatch
	}
	return r.elemType == ElementTypeTrue, nil
}

// String returns the current element as a UTF-8 string.
func (r *Reader) String() (string, error) {
	if err := r.expect(ElementTypeString); err != nil {
		return "", err
	}
	return string(r.data), nil
}

// Bytes returns the current element as an octet string.
func (r *Reader) Bytes() ([]byte, error) {
	if err := r.expect(ElementTypeBytes); err != nil {
		return nil, err
	}
	return r.data, nil
}

func (r *Reader) expect(elemType ElementType) error {
	if !r.hasElement {
		return ErrNoElement
	}
	if r.elemType != elemType {
		return ErrTypeMismatch
	}
	return nil
}
