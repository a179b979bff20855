package transport

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

type readResult struct {
	data []byte
	err  error
}

func readAsync(c Channel) <-chan readResult {
	done := make(chan readResult, 1)
	go func() {
		data, err := c.ReadMessage()
		done <- readResult{data, err}
	}()
	return done
}

// TestPipe_AutoProcess verifies that messages flow automatically by default.
func TestPipe_AutoProcess(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	if !p.AutoProcess() {
		t.Fatal("AutoProcess should be true by default")
	}

	evcc, secc := p.Channels(ConnConfig{})
	done := readAsync(secc)

	want := []byte{0x80, 0x98, 0x02, 0x10}
	if err := evcc.WriteMessage(want); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("ReadMessage() error = %v", r.err)
		}
		if !bytes.Equal(r.data, want) {
			t.Errorf("ReadMessage() = %x, want %x", r.data, want)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout - auto-process may not be working")
	}
}

// TestPipe_ManualProcess verifies that manual processing works when auto-process is disabled.
func TestPipe_ManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	if p.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	evcc, secc := p.Channels(ConnConfig{})
	done := readAsync(secc)

	if err := evcc.WriteMessage([]byte("manual")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	select {
	case <-done:
		t.Fatal("message delivered without Process() - auto-process may be on")
	case <-time.After(50 * time.Millisecond):
	}

	if n := p.Process(); n == 0 {
		t.Error("Process() delivered nothing")
	}

	select {
	case r := <-done:
		if r.err != nil || string(r.data) != "manual" {
			t.Fatalf("ReadMessage() = %q, %v", r.data, r.err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout after Process()")
	}
}

func TestPipe_Bidirectional(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	evcc, secc := p.Channels(ConnConfig{})
	done0 := readAsync(evcc)
	done1 := readAsync(secc)

	_ = evcc.WriteMessage([]byte("from evcc"))
	_ = secc.WriteMessage([]byte("from secc"))

	for _, tc := range []struct {
		done <-chan readResult
		want string
	}{
		{done0, "from secc"},
		{done1, "from evcc"},
	} {
		select {
		case r := <-tc.done:
			if string(r.data) != tc.want {
				t.Errorf("ReadMessage() = %q, want %q", r.data, tc.want)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for read")
		}
	}
}

func TestPipe_Delay(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	p.SetCondition(NetworkCondition{DelayMin: 20 * time.Millisecond, DelayMax: 20 * time.Millisecond})
	if got := p.Condition().DelayMin; got != 20*time.Millisecond {
		t.Errorf("Condition().DelayMin = %v", got)
	}

	evcc, secc := p.Channels(ConnConfig{})
	done := readAsync(secc)

	start := time.Now()
	_ = evcc.WriteMessage([]byte("slow"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delayed message")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("message arrived after %v, want at least 20ms", elapsed)
	}
}

func TestPipe_Close(t *testing.T) {
	p := NewPipe()
	_, secc := p.Channels(ConnConfig{})
	done := readAsync(secc)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case r := <-done:
		if r.err == nil {
			t.Error("ReadMessage() after Close should fail")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ReadMessage() should unblock on Close")
	}
}

func TestPipe_SetAutoProcess(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	p.SetAutoProcess(false)
	if p.AutoProcess() {
		t.Error("AutoProcess() should be false")
	}
	p.SetAutoProcess(true)
	if !p.AutoProcess() {
		t.Error("AutoProcess() should be true")
	}
}

func TestPipe_Listener(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	l := p.Listener()
	if l.Addr().String() != "pipe:1" {
		t.Errorf("Addr() = %s, want pipe:1", l.Addr())
	}

	conn, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if conn.RemoteAddr().String() != "pipe:0" {
		t.Errorf("RemoteAddr() = %s, want pipe:0", conn.RemoteAddr())
	}

	// A second Accept blocks until Close.
	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("second Accept() should block")
	case <-time.After(20 * time.Millisecond):
	}

	_ = l.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Accept() after Close should fail")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Accept() should unblock on Close")
	}
}

func TestPipeAddr_String(t *testing.T) {
	addr := PipeAddr{ID: 1}
	if addr.String() != "pipe:1" || addr.Network() != "pipe" {
		t.Errorf("PipeAddr = %s/%s", addr.Network(), addr.String())
	}
}

func TestConn_Limits(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client, ConnConfig{MaxPayload: 4})
	s := NewConn(server, ConnConfig{MaxPayload: 4})
	defer c.Close()
	defer s.Close()

	if err := c.WriteMessage([]byte{1, 2, 3, 4, 5}); err != ErrMessageTooLarge {
		t.Errorf("WriteMessage() error = %v, want ErrMessageTooLarge", err)
	}

	done := readAsync(s)
	if err := c.WriteMessage([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	r := <-done
	if r.err != nil || !bytes.Equal(r.data, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadMessage() = %x, %v", r.data, r.err)
	}
}

func TestConn_UnexpectedPayload(t *testing.T) {
	client, server := net.Pipe()
	s := NewConn(server, ConnConfig{})
	defer client.Close()
	defer s.Close()

	go func() {
		// SDP request frame
		_, _ = client.Write([]byte{0x01, 0xFE, 0x90, 0x00, 0, 0, 0, 1, 0x10})
	}()
	if _, err := s.ReadMessage(); err != ErrUnexpectedPayload {
		t.Errorf("ReadMessage() error = %v, want ErrUnexpectedPayload", err)
	}
}

func TestConn_EOFAndClose(t *testing.T) {
	client, server := net.Pipe()
	s := NewConn(server, ConnConfig{})

	go func() { _ = client.Close() }()
	if _, err := s.ReadMessage(); err != io.EOF {
		t.Errorf("ReadMessage() error = %v, want io.EOF", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.WriteMessage([]byte{1}); err != ErrClosed {
		t.Errorf("WriteMessage() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.ReadMessage(); err != ErrClosed {
		t.Errorf("ReadMessage() after Close error = %v, want ErrClosed", err)
	}
}
