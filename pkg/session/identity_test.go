package session

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// scriptedReader returns the given chunks in order, then EOF.
type scriptedReader struct {
	data []byte
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestIDFromValue(t *testing.T) {
	tests := []struct {
		value uint64
		want  ID
	}{
		{0, ID{}},
		{1, ID{0, 0, 0, 0, 0, 0, 0, 1}},
		{0x0102030405060708, ID{1, 2, 3, 4, 5, 6, 7, 8}},
		{^uint64(0), ID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		got := IDFromValue(tt.value)
		if got != tt.want {
			t.Errorf("IDFromValue(%#x) = %v, want %v", tt.value, got, tt.want)
		}
		if got.Value() != tt.value {
			t.Errorf("IDFromValue(%#x).Value() = %#x", tt.value, got.Value())
		}
	}

	if !IDFromValue(0).IsZero() {
		t.Error("IDFromValue(0) should be the sentinel")
	}
	if IDFromValue(0x0102030405060708).String() != "0102030405060708" {
		t.Errorf("String() = %s", IDFromValue(0x0102030405060708).String())
	}
}

func TestIDFromBytes(t *testing.T) {
	if _, err := IDFromBytes([]byte{1, 2, 3}); err != ErrInvalidSessionID {
		t.Errorf("IDFromBytes(short) error = %v, want ErrInvalidSessionID", err)
	}
	id, err := IDFromBytes([]byte{0, 0, 0, 0, 0, 0, 1, 0})
	if err != nil || id.Value() != 256 {
		t.Errorf("IDFromBytes() = %v, %v", id, err)
	}
}

func TestGenerateID_RejectsZeroAndPrevious(t *testing.T) {
	previous := IDFromValue(7)
	zero := make([]byte, IDSize)
	r := &scriptedReader{data: bytes.Join([][]byte{
		zero,
		previous[:],
		zero,
		{0, 0, 0, 0, 0, 0, 0, 9},
	}, nil)}

	id, err := GenerateID(r, previous)
	if err != nil {
		t.Fatalf("GenerateID() error = %v", err)
	}
	if id.Value() != 9 {
		t.Errorf("GenerateID() = %v, want value 9", id)
	}
}

func TestGenerateID_BrokenSource(t *testing.T) {
	zeros := &scriptedReader{data: make([]byte, IDSize*maxIDAttempts)}
	if _, err := GenerateID(zeros, ID{}); err != ErrIDGeneration {
		t.Errorf("GenerateID(zeros) error = %v, want ErrIDGeneration", err)
	}

	short := &scriptedReader{data: []byte{1, 2, 3}}
	if _, err := GenerateID(short, ID{}); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("GenerateID(short) error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestGenerateID_CryptoRand(t *testing.T) {
	var previous ID
	for i := 0; i < 100; i++ {
		id, err := GenerateID(nil, previous)
		if err != nil {
			t.Fatalf("GenerateID() error = %v", err)
		}
		if id.IsZero() {
			t.Fatal("GenerateID() returned the zero sentinel")
		}
		if id == previous {
			t.Fatal("GenerateID() repeated the previous identifier")
		}
		previous = id
	}
}
