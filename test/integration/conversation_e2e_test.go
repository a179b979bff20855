package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backkem/v2g/pkg/evcc"
	"github.com/backkem/v2g/pkg/message"
	"github.com/backkem/v2g/pkg/secc"
	"github.com/backkem/v2g/pkg/session"
	"github.com/backkem/v2g/pkg/transport"
	"github.com/pion/transport/v3/test"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testEVCCID = []byte{0x00, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E}

// TestConversation_Terminate runs the full message set and ends with a
// successful termination on both sides.
func TestConversation_Terminate(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	client, err := pair.Charge(evcc.Config{EVCCID: testEVCCID})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	ev, ok := client.Result()
	if !ok || !ev.Successful {
		t.Fatalf("Result() = %+v, %v", ev, ok)
	}
	if ev.SessionID.IsZero() {
		t.Error("terminated session should carry the assigned identifier")
	}
	if client.Session().State() != session.StateTerminated {
		t.Errorf("State() = %s, want Terminated", client.Session().State())
	}

	mgr := pair.Server.Manager()
	if mgr.Count() != 0 || mgr.PausedCount() != 0 {
		t.Errorf("manager Count() = %d, PausedCount() = %d, want 0 and 0", mgr.Count(), mgr.PausedCount())
	}
	if mgr.LastID() != ev.SessionID {
		t.Errorf("LastID() = %s, want %s", mgr.LastID(), ev.SessionID)
	}

	// Both parties terminate successfully once.
	if got := testutil.CollectAndCount(pair.Metrics.Terminations()); got != 1 {
		t.Errorf("termination series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(pair.Metrics.Terminations().WithLabelValues("ok")); got != 2 {
		t.Errorf("successful terminations = %v, want 2", got)
	}
}

// TestConversation_PauseAndResume pauses a session, then rejoins it from a
// new connection with the same identifier.
func TestConversation_PauseAndResume(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	first, err := pair.Charge(evcc.Config{EVCCID: testEVCCID, Stop: message.ChargingSessionPause})
	if err != nil {
		t.Fatalf("first Charge() error = %v", err)
	}
	if first.Session().Status() != session.StatusPaused {
		t.Fatalf("first Status() = %s, want Paused", first.Session().Status())
	}
	pausedID := first.Session().ID()

	mgr := pair.Server.Manager()
	if _, token, ok := mgr.FindPaused(pausedID); !ok || token != pausedID.String() {
		t.Fatalf("FindPaused(%s) = %q, %v", pausedID, token, ok)
	}

	second, err := pair.Charge(evcc.Config{EVCCID: testEVCCID, ResumeID: pausedID})
	if err != nil {
		t.Fatalf("second Charge() error = %v", err)
	}
	if !second.Joined() {
		t.Error("second conversation should join the paused session")
	}
	if second.Session().ID() != pausedID {
		t.Errorf("second ID() = %s, want %s", second.Session().ID(), pausedID)
	}
	if mgr.PausedCount() != 0 || mgr.Count() != 0 {
		t.Errorf("manager Count() = %d, PausedCount() = %d, want 0 and 0", mgr.Count(), mgr.PausedCount())
	}
	if got := testutil.ToFloat64(pair.Metrics.Pauses()); got != 2 {
		t.Errorf("pauses = %v, want 2", got)
	}
}

// TestConversation_NewSessionAvoidsPreviousID checks that consecutive
// conversations get distinct identifiers.
func TestConversation_NewSessionAvoidsPreviousID(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	var previous session.ID
	for i := 0; i < 3; i++ {
		client, err := pair.Charge(evcc.Config{EVCCID: testEVCCID})
		if err != nil {
			t.Fatalf("Charge() #%d error = %v", i, err)
		}
		id := client.Session().ID()
		if id.IsZero() || id == previous {
			t.Errorf("Charge() #%d ID = %s, previous %s", i, id, previous)
		}
		previous = id
	}
}

// TestConversation_PaymentFallback selects the station's option when it
// does not offer the vehicle's preferred one.
func TestConversation_PaymentFallback(t *testing.T) {
	config := DefaultTestPairConfig()
	config.Station.PaymentOptions = []string{message.PaymentContract}
	pair := NewTestPair(t, config)
	defer pair.Close()

	client, err := pair.Charge(evcc.Config{EVCCID: testEVCCID})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if ev, _ := client.Result(); !ev.Successful {
		t.Errorf("Result() = %+v, want success", ev)
	}
}

// TestConversation_OverPipe serves a conversation over the in-memory pipe.
func TestConversation_OverPipe(t *testing.T) {
	p := transport.NewPipe()
	defer p.Close()

	server, err := secc.NewServer(secc.ServerConfig{Listener: p.Listener()})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer server.Stop()

	client, err := evcc.NewClient(evcc.Config{EVCCID: testEVCCID})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Run(ctx, transport.NewConn(p.Conn0(), transport.ConnConfig{})); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ev, ok := client.Result(); !ok || !ev.Successful {
		t.Errorf("Result() = %+v, %v", ev, ok)
	}
}

// TestConversation_Cancel terminates the vehicle session when its context
// is cancelled mid-conversation.
func TestConversation_Cancel(t *testing.T) {
	p := transport.NewPipe()
	defer p.Close()

	client, err := evcc.NewClient(evcc.Config{EVCCID: testEVCCID})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, transport.NewConn(p.Conn0(), transport.ConnConfig{}))
	}()

	// Nobody answers on the station side.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() should return after cancel")
	}

	ev, ok := client.Result()
	if !ok || ev.Successful {
		t.Errorf("Result() = %+v, %v, want unsuccessful termination", ev, ok)
	}
}
