package tlv

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

// Round-trip tests: write then read back, verifying both value and encoding

func TestRoundTrip_Uint(t *testing.T) {
	testCases := []struct {
		name         string
		value        uint64
		expectedSize int // control byte + tag + varint
	}{
		{"zero", 0, 3},
		{"max_one_byte", 127, 3},
		{"two_bytes", 128, 4},
		{"max_uint32", math.MaxUint32, 7},
		{"max_uint64", math.MaxUint64, 12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.PutUint(1, tc.value); err != nil {
				t.Fatalf("PutUint failed: %v", err)
			}
			if buf.Len() != tc.expectedSize {
				t.Errorf("expected encoded size %d, got %d (bytes: %x)",
					tc.expectedSize, buf.Len(), buf.Bytes())
			}

			r := NewReader(bytes.NewReader(buf.Bytes()))
			if err := r.Next(); err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if r.Type() != ElementTypeUint {
				t.Errorf("Type() = %v, want Uint", r.Type())
			}
			got, err := r.Uint()
			if err != nil {
				t.Fatalf("Uint failed: %v", err)
			}
			if got != tc.value {
				t.Errorf("Uint() = %d, want %d", got, tc.value)
			}
		})
	}
}

func TestRoundTrip_Int(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 64, -65, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64}

	for _, v := range values {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.PutInt(7, v); err != nil {
			t.Fatalf("PutInt(%d) failed: %v", v, err)
		}

		r := NewReader(&buf)
		if err := r.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got, err := r.Int()
		if err != nil {
			t.Fatalf("Int failed: %v", err)
		}
		if got != v {
			t.Errorf("Int() = %d, want %d", got, v)
		}
		if r.Tag() != 7 {
			t.Errorf("Tag() = %d, want 7", r.Tag())
		}
	}
}

func TestRoundTrip_SmallIntsAreShort(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutInt(1, -1); err != nil {
		t.Fatal(err)
	}
	// control + tag + single zig-zag byte
	if buf.Len() != 3 {
		t.Errorf("encoded -1 in %d bytes, want 3", buf.Len())
	}
}

func TestRoundTrip_StringsAndBytes(t *testing.T) {
	long := strings.Repeat("x", 300)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutString(2, ""); err != nil {
		t.Fatal(err)
	}
	if err := w.PutString(3, long); err != nil {
		t.Fatal(err)
	}
	if err := w.PutBytes(4, []byte{0xDE, 0xAD}); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)

	if err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if s, err := r.String(); err != nil || s != "" {
		t.Errorf("String() = %q, %v; want empty", s, err)
	}

	if err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if s, err := r.String(); err != nil || s != long {
		t.Errorf("String() len=%d, %v; want len=%d", len(s), err, len(long))
	}

	if err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if b, err := r.Bytes(); err != nil || !bytes.Equal(b, []byte{0xDE, 0xAD}) {
		t.Errorf("Bytes() = %x, %v", b, err)
	}

	if err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestRoundTrip_Nested(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	steps := []func() error{
		func() error { return w.StartElement(10) },
		func() error { return w.PutBool(11, true) },
		func() error { return w.StartElement(12) },
		func() error { return w.PutEnum(13, 2) },
		func() error { return w.EndElement() },
		func() error { return w.PutBool(14, false) },
		func() error { return w.EndElement() },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	if w.Depth() != 0 {
		t.Errorf("writer Depth() = %d, want 0", w.Depth())
	}

	want := []struct {
		typ   ElementType
		tag   Tag
		depth int
	}{
		{ElementTypeStart, 10, 1},
		{ElementTypeTrue, 11, 1},
		{ElementTypeStart, 12, 2},
		{ElementTypeEnum, 13, 2},
		{ElementTypeEnd, 0, 1},
		{ElementTypeFalse, 14, 1},
		{ElementTypeEnd, 0, 0},
	}

	r := NewReader(&buf)
	for i, exp := range want {
		if err := r.Next(); err != nil {
			t.Fatalf("element %d: Next failed: %v", i, err)
		}
		if r.Type() != exp.typ || r.Tag() != exp.tag || r.Depth() != exp.depth {
			t.Errorf("element %d = (%v, %d, depth %d), want (%v, %d, depth %d)",
				i, r.Type(), r.Tag(), r.Depth(), exp.typ, exp.tag, exp.depth)
		}
	}
	if err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestWriter_Errors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.EndElement(); err != ErrNotInElement {
		t.Errorf("EndElement() outside element = %v, want ErrNotInElement", err)
	}
	if err := w.PutUint(0, 1); err != ErrInvalidTag {
		t.Errorf("PutUint(tag 0) = %v, want ErrInvalidTag", err)
	}
	if err := w.PutString(1, string([]byte{0xff, 0xfe})); err != ErrInvalidUTF8 {
		t.Errorf("PutString(invalid) = %v, want ErrInvalidUTF8", err)
	}
}

func TestReader_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"invalid type", []byte{0x1F, 0x01}, ErrInvalidElementType},
		{"zero tag", []byte{byte(ElementTypeUint), 0x00, 0x01}, ErrInvalidTag},
		{"truncated tag", []byte{byte(ElementTypeUint)}, io.ErrUnexpectedEOF},
		{"truncated value", []byte{byte(ElementTypeUint), 0x01}, io.ErrUnexpectedEOF},
		{"truncated varint", []byte{byte(ElementTypeUint), 0x01, 0x80}, io.ErrUnexpectedEOF},
		{"truncated string", []byte{byte(ElementTypeString), 0x01, 0x05, 'a'}, io.ErrUnexpectedEOF},
		{"string missing data", []byte{byte(ElementTypeBytes), 0x01, 0x02}, io.ErrUnexpectedEOF},
		{"invalid utf8", []byte{byte(ElementTypeString), 0x01, 0x01, 0xff}, ErrInvalidUTF8},
		{"stray end", []byte{byte(ElementTypeEnd)}, ErrNotInElement},
		{"too long", []byte{byte(ElementTypeBytes), 0x01, 0xff, 0xff, 0xff, 0x7f}, ErrValueTooLong},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tc.data))
			err := r.Next()
			if !errors.Is(err, tc.want) {
				t.Errorf("Next() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReader_UnclosedElement(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.StartElement(1)
	w.PutUint(2, 5)

	r := NewReader(&buf)
	for i := 0; i < 2; i++ {
		if err := r.Next(); err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
	}
	if err := r.Next(); err != ErrElementNotClosed {
		t.Errorf("Next() = %v, want ErrElementNotClosed", err)
	}
}

func TestReader_TypeMismatch(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).PutUint(1, 42)

	r := NewReader(&buf)
	if _, err := r.Uint(); err != ErrNoElement {
		t.Errorf("Uint() before Next = %v, want ErrNoElement", err)
	}
	if err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.String(); err != ErrTypeMismatch {
		t.Errorf("String() on Uint = %v, want ErrTypeMismatch", err)
	}
	if _, err := r.Bool(); err != ErrTypeMismatch {
		t.Errorf("Bool() on Uint = %v, want ErrTypeMismatch", err)
	}
	if _, err := r.Int(); err != ErrTypeMismatch {
		t.Errorf("Int() on Uint = %v, want ErrTypeMismatch", err)
	}
}
