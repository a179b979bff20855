package v2gtp

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
)

func TestFrameRoundtrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"empty EXI", Frame{Type: PayloadEXI}},
		{"EXI payload", Frame{Type: PayloadEXI, Payload: []byte{0x80, 0x98, 0x02, 0x10}}},
		{"SDP request", Frame{Type: PayloadSDPRequest, Payload: []byte{0x10, 0x00}}},
		{"SDP response", Frame{Type: PayloadSDPResponse, Payload: bytes.Repeat([]byte{0xAB}, 28)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Encode()
			if len(encoded) != HeaderSize+len(tc.frame.Payload) {
				t.Fatalf("len(Encode()) = %d, want %d", len(encoded), HeaderSize+len(tc.frame.Payload))
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if decoded.Type != tc.frame.Type {
				t.Errorf("Type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Payload = %x, want %x", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	got := Encode([]byte{0xAA, 0xBB})
	want := []byte{0x01, 0xFE, 0x80, 0x01, 0x00, 0x00, 0x00, 0x02, 0xAA, 0xBB}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrFrameTooShort},
		{"short header", []byte{0x01, 0xFE, 0x80}, ErrFrameTooShort},
		{"bad version", []byte{0x02, 0xFD, 0x80, 0x01, 0, 0, 0, 0}, ErrInvalidVersion},
		{"bad inverse", []byte{0x01, 0xFF, 0x80, 0x01, 0, 0, 0, 0}, ErrInvalidVersion},
		{"unknown type", []byte{0x01, 0xFE, 0x80, 0x02, 0, 0, 0, 0}, ErrUnknownPayloadType},
		{"length too long", []byte{0x01, 0xFE, 0x80, 0x01, 0, 0, 0, 3, 0xAA}, ErrPayloadLenMismatch},
		{"trailing bytes", []byte{0x01, 0xFE, 0x80, 0x01, 0, 0, 0, 0, 0xAA}, ErrPayloadLenMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); err != tc.want {
				t.Errorf("Decode() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReader_Stream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	frames := []*Frame{
		{Type: PayloadEXI, Payload: []byte{1, 2, 3}},
		{Type: PayloadEXI},
		{Type: PayloadSDPResponse, Payload: []byte{4}},
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame() error: %v", err)
		}
	}

	r := NewReader(&buf, 0)
	for i, want := range frames {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() #%d error: %v", i, err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("ReadFrame() #%d = %v %x, want %v %x", i, got.Type, got.Payload, want.Type, want.Payload)
		}
	}
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end error = %v, want io.EOF", err)
	}
}

func TestReader_Limits(t *testing.T) {
	data := Encode(make([]byte, 100))

	if _, err := NewReader(bytes.NewReader(data), 50).ReadFrame(); err != ErrPayloadTooLong {
		t.Errorf("ReadFrame() over limit error = %v, want ErrPayloadTooLong", err)
	}
	if _, err := NewReader(bytes.NewReader(data[:20]), 0).ReadFrame(); !errors.Is(err, ErrStreamReadFailed) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame() truncated payload error = %v, want ErrStreamReadFailed", err)
	}
	if _, err := ReadFrame(bytes.NewReader(data[:4])); !errors.Is(err, ErrStreamReadFailed) {
		t.Errorf("ReadFrame() truncated header error = %v, want ErrStreamReadFailed", err)
	}
}

func TestReader_OverConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("over the pipe")
	go func() {
		_ = NewWriter(client).WriteFrame(&Frame{Type: PayloadEXI, Payload: payload})
	}()

	f, err := ReadFrame(server)
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload = %q, want %q", f.Payload, payload)
	}
}

func TestPayloadType_String(t *testing.T) {
	tests := []struct {
		p    PayloadType
		want string
	}{
		{PayloadEXI, "EXI"},
		{PayloadSDPRequest, "SDPRequest"},
		{PayloadSDPResponse, "SDPResponse"},
		{PayloadType(0x1234), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("PayloadType(%#x).String() = %q, want %q", uint16(tt.p), got, tt.want)
		}
	}
}
