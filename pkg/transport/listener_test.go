package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
)

// echoHandler writes every message back until the peer goes away.
func echoHandler(c *Conn) {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if err := c.WriteMessage(data); err != nil {
			return
		}
	}
}

func TestNewListener(t *testing.T) {
	if _, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0"}); err != ErrNoHandler {
		t.Errorf("NewListener() error = %v, want %v", err, ErrNoHandler)
	}

	raw, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	l, err := NewListener(ListenerConfig{Listener: raw, Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if l.Addr() != raw.Addr() {
		t.Error("NewListener() did not use injected listener")
	}
	_ = raw.Close()
}

func TestListener_StartStop(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	l, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0", Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}

	if err := l.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := l.Start(); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := l.Stop(); err != ErrClosed {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}
	if err := l.Start(); err != ErrClosed {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrClosed)
	}
}

func TestListener_EchoOverTCP(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	l, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0", Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, l.Addr().String(), ConnConfig{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	for _, msg := range []string{"first", "second", "third"} {
		if err := c.WriteMessage([]byte(msg)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		got, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if string(got) != msg {
			t.Errorf("ReadMessage() = %q, want %q", got, msg)
		}
	}
}

func TestListener_OverPipe(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	l, err := NewListener(ListenerConfig{Listener: p.Listener(), Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	c := NewConn(p.Conn0(), ConnConfig{})
	if err := c.WriteMessage([]byte("ping")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	got, err := c.ReadMessage()
	if err != nil || string(got) != "ping" {
		t.Fatalf("ReadMessage() = %q, %v", got, err)
	}
	if n := l.ConnCount(); n != 1 {
		t.Errorf("ConnCount() = %d, want 1", n)
	}

	if err := l.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if n := l.ConnCount(); n != 0 {
		t.Errorf("ConnCount() after Stop = %d, want 0", n)
	}
}
