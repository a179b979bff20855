// Package evcc implements the vehicle side of a conversation. The vehicle
// initiates: every response it receives is answered by its next request
// until the session ends.
package evcc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
	"github.com/backkem/v2g/pkg/session"
	"github.com/backkem/v2g/pkg/transport"
	"github.com/pion/logging"
)

// Vehicle states. The conversation starts in session.StateStart, waiting
// for the handshake response.
var (
	StateWaitForSessionSetupRes     = session.DefineState("EVCC.WaitForSessionSetupRes")
	StateWaitForServiceDiscoveryRes = session.DefineState("EVCC.WaitForServiceDiscoveryRes")
	StateWaitForPaymentSelectionRes = session.DefineState("EVCC.WaitForPaymentSelectionRes")
	StateWaitForAuthorizationRes    = session.DefineState("EVCC.WaitForAuthorizationRes")
	StateWaitForPowerDeliveryStart  = session.DefineState("EVCC.WaitForPowerDeliveryStart")
	StateWaitForPowerDeliveryStop   = session.DefineState("EVCC.WaitForPowerDeliveryStop")
	StateWaitForSessionStopRes      = session.DefineState("EVCC.WaitForSessionStopRes")
)

// Client errors.
var (
	// ErrNoReply is returned when an active session produced no request to send.
	ErrNoReply = errors.New("evcc: no request to send")

	// ErrSessionFailed is returned when the session ends unsuccessfully.
	ErrSessionFailed = errors.New("evcc: session terminated unsuccessfully")
)

// DefaultSchemaID is the schema id offered for the main exchange protocol.
const DefaultSchemaID = 1

// Config configures a Client.
type Config struct {
	// EVCCID identifies the vehicle (6 bytes, typically its MAC address).
	EVCCID []byte

	// PaymentOption is the preferred payment option.
	// Default: ExternalPayment
	PaymentOption string

	// Stop selects whether the conversation ends by terminating or
	// pausing the session.
	// Default: ChargingSessionTerminate
	Stop message.ChargingSession

	// ResumeID is the identifier of a paused session to rejoin. Zero
	// starts a new session.
	ResumeID session.ID

	// Resolver supplies the schemas (default: grammar.Default).
	Resolver *grammar.Resolver

	// Options are the codec grammar options (default: strict).
	Options grammar.Options

	// Metrics observes codec operations. Optional.
	Metrics exi.Metrics

	// Observer is subscribed to the session. Optional.
	Observer session.Listener

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client runs one vehicle session.
type Client struct {
	cfg     Config
	session *session.Session
	joined  bool
	log     logging.LeveledLogger

	mu     sync.Mutex
	result *session.TerminationEvent
}

// NewClient creates a client with a fresh session.
func NewClient(config Config) (*Client, error) {
	if config.PaymentOption == "" {
		config.PaymentOption = message.PaymentExternalPayment
	}
	if config.Stop == "" {
		config.Stop = message.ChargingSessionTerminate
	}

	codec, err := message.NewCodec(exi.CodecConfig[*message.Message]{
		Resolver:      config.Resolver,
		Options:       config.Options,
		Metrics:       config.Metrics,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: config}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("evcc")
	}

	registry, err := c.registry()
	if err != nil {
		return nil, err
	}
	c.session, err = session.New(session.Config{
		Registry:      registry,
		Codec:         codec,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	c.session.Subscribe(session.ListenerFuncs{Terminate: c.onTerminate})
	if config.Observer != nil {
		c.session.Subscribe(config.Observer)
	}
	return c, nil
}

// Session returns the client's session.
func (c *Client) Session() *session.Session {
	return c.session
}

// Joined reports whether the station rejoined a paused session.
func (c *Client) Joined() bool {
	return c.joined
}

// Run drives the conversation over ch until the session pauses or
// terminates. Cancelling ctx closes ch and terminates the session.
func (c *Client) Run(ctx context.Context, ch transport.Channel) error {
	stop := context.AfterFunc(ctx, func() { _ = ch.Close() })
	defer stop()

	req := message.NewSupportedAppProtocolReq(message.AppProtocol{
		Namespace: message.ProtocolNamespace,
		Major:     message.ProtocolMajor,
		Minor:     message.ProtocolMinor,
		SchemaID:  DefaultSchemaID,
		Priority:  1,
	})
	data, err := c.session.Send(req)
	if err != nil {
		return err
	}

	for {
		if err := ch.WriteMessage(data); err != nil {
			return c.abort(ctx, fmt.Errorf("write: %w", err))
		}

		res, err := ch.ReadMessage()
		if err != nil {
			return c.abort(ctx, fmt.Errorf("read: %w", err))
		}

		data, err = c.session.HandleWire(res)
		if err != nil {
			return err
		}
		if c.session.Status() != session.StatusActive {
			return c.err()
		}
		if data == nil {
			_ = c.session.Terminate(ErrNoReply.Error(), false)
			return ErrNoReply
		}
	}
}

func (c *Client) onTerminate(ev session.TerminationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &ev
	return nil
}

// Result returns the termination event, if the session has terminated.
func (c *Client) Result() (session.TerminationEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return session.TerminationEvent{}, false
	}
	return *c.result, true
}

func (c *Client) err() error {
	if ev, ok := c.Result(); ok && !ev.Successful {
		return fmt.Errorf("%w: %s", ErrSessionFailed, ev.Reason)
	}
	return nil
}

func (c *Client) abort(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	if c.session.Status() == session.StatusActive {
		_ = c.session.Terminate(err.Error(), false)
	}
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (c *Client) registry() (*session.Registry, error) {
	r := session.NewRegistry()
	for _, reg := range []struct {
		state session.State
		typ   message.Type
		fn    func(*session.Context, *message.Message) (session.Outcome, error)
	}{
		{session.StateStart, message.TypeSupportedAppProtocolRes, c.handshakeRes},
		{StateWaitForSessionSetupRes, message.TypeSessionSetupRes, c.sessionSetupRes},
		{StateWaitForServiceDiscoveryRes, message.TypeServiceDiscoveryRes, c.serviceDiscoveryRes},
		{StateWaitForPaymentSelectionRes, message.TypePaymentServiceSelectionRes, c.paymentSelectionRes},
		{StateWaitForAuthorizationRes, message.TypeAuthorizationRes, c.authorizationRes},
		{StateWaitForPowerDeliveryStart, message.TypePowerDeliveryRes, c.powerDeliveryStartRes},
		{StateWaitForPowerDeliveryStop, message.TypePowerDeliveryRes, c.powerDeliveryStopRes},
		{StateWaitForSessionStopRes, message.TypeSessionStopRes, c.sessionStopRes},
	} {
		if err := r.RegisterFunc(reg.state, reg.typ, reg.fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// failed ends the session when a response reports failure.
func failed(msg *message.Message) (session.Outcome, bool) {
	code, _ := msg.ResponseCode()
	if code.IsOK() {
		return session.Outcome{}, false
	}
	return session.Terminate(fmt.Sprintf("%s: %s", msg.Type, code), false), true
}

// handshakeRes switches to the main exchange before the session setup
// request is encoded.
func (c *Client) handshakeRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	code, _ := msg.Body.TextOf("ResponseCode")
	if code == message.HandshakeFailed {
		return session.Terminate("handshake rejected", false), nil
	}
	if err := ctx.AdvancePhase(grammar.PhaseMainExchange); err != nil {
		return session.Outcome{}, err
	}
	if !c.cfg.ResumeID.IsZero() {
		ctx.ResumeID(c.cfg.ResumeID.Value())
	}
	return session.NextState(StateWaitForSessionSetupRes, message.NewSessionSetupReq(c.cfg.EVCCID)), nil
}

// sessionSetupRes adopts the identifier assigned by the station and
// refuses the never-assigned one.
func (c *Client) sessionSetupRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	if err := ctx.SetID(msg.SessionID[:]); err != nil {
		return session.Outcome{}, err
	}
	code, _ := msg.ResponseCode()
	c.joined = code == message.ResponseOKOldSessionJoined
	if c.log != nil {
		c.log.Infof("session %s established (%s)", ctx.ID(), code)
	}
	return session.NextState(StateWaitForServiceDiscoveryRes, message.NewServiceDiscoveryReq()), nil
}

func (c *Client) serviceDiscoveryRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	options, svc, _ := msg.Offer()
	option := c.cfg.PaymentOption
	if !slices.Contains(options, option) && len(options) > 0 {
		option = options[0]
	}
	req := message.NewPaymentServiceSelectionReq(option, svc.ServiceID)
	return session.NextState(StateWaitForPaymentSelectionRes, req), nil
}

func (c *Client) paymentSelectionRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	return session.NextState(StateWaitForAuthorizationRes, message.NewAuthorizationReq()), nil
}

// authorizationRes polls until the station finishes processing.
func (c *Client) authorizationRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	if p, _ := msg.EVSEProcessing(); p != message.ProcessingFinished {
		return session.NextState(StateWaitForAuthorizationRes, message.NewAuthorizationReq()), nil
	}
	req := message.NewPowerDeliveryReq(message.ChargeProgressStart, 1)
	return session.NextState(StateWaitForPowerDeliveryStart, req), nil
}

func (c *Client) powerDeliveryStartRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	req := message.NewPowerDeliveryReq(message.ChargeProgressStop, 1)
	return session.NextState(StateWaitForPowerDeliveryStop, req), nil
}

func (c *Client) powerDeliveryStopRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	return session.NextState(StateWaitForSessionStopRes, message.NewSessionStopReq(c.cfg.Stop)), nil
}

// sessionStopRes ends the vehicle side the way it asked the station to.
func (c *Client) sessionStopRes(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	if out, ok := failed(msg); ok {
		return out, nil
	}
	if c.cfg.Stop == message.ChargingSessionPause {
		return session.Pause(ctx.ID().String()), nil
	}
	return session.Terminate("session stopped", true), nil
}
