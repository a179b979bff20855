package secc

import (
	"fmt"
	"slices"
	"time"

	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
	"github.com/backkem/v2g/pkg/session"
	"github.com/pion/logging"
)

// Defaults for Config.
const (
	DefaultEVSEID       = "ZZ00000"
	DefaultServiceID    = 1
	DefaultTransferMode = "AC_three_phase_core"
)

// Config describes what the charging station offers.
type Config struct {
	// EVSEID identifies the station in SessionSetupRes.
	// Default: DefaultEVSEID
	EVSEID string

	// PaymentOptions are offered in ServiceDiscoveryRes.
	// Default: [ExternalPayment]
	PaymentOptions []string

	// ServiceID identifies the charge service.
	// Default: DefaultServiceID
	ServiceID uint64

	// TransferModes are the supported energy transfer modes.
	// Default: [DefaultTransferMode]
	TransferModes []string

	// FreeService marks the charge service as free of charge.
	FreeService bool

	// Now returns the station clock (default: time.Now).
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.EVSEID == "" {
		c.EVSEID = DefaultEVSEID
	}
	if len(c.PaymentOptions) == 0 {
		c.PaymentOptions = []string{message.PaymentExternalPayment}
	}
	if c.ServiceID == 0 {
		c.ServiceID = DefaultServiceID
	}
	if len(c.TransferModes) == 0 {
		c.TransferModes = []string{DefaultTransferMode}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Resumer finds paused sessions for resumption. *session.Manager
// implements it.
type Resumer interface {
	FindPaused(id session.ID) (*session.Session, string, bool)
}

// handlers holds the station's message handlers.
type handlers struct {
	cfg     Config
	resumer Resumer
	log     logging.LeveledLogger
}

// NewRegistry returns a registry with the charging station handlers.
// resumer may be nil, in which case every SessionSetupReq starts a new
// session.
func NewRegistry(config Config, resumer Resumer, loggerFactory logging.LoggerFactory) (*session.Registry, error) {
	return newHandlers(config, resumer, loggerFactory).registry()
}

func newHandlers(config Config, resumer Resumer, loggerFactory logging.LoggerFactory) *handlers {
	config.setDefaults()
	h := &handlers{cfg: config, resumer: resumer}
	if loggerFactory != nil {
		h.log = loggerFactory.NewLogger("secc")
	}
	return h
}

func (h *handlers) registry() (*session.Registry, error) {
	r := session.NewRegistry()
	for _, reg := range []struct {
		state session.State
		typ   message.Type
		fn    func(*session.Context, *message.Message) (session.Outcome, error)
	}{
		{session.StateStart, message.TypeSupportedAppProtocolReq, h.handshake},
		{StateWaitForSessionSetup, message.TypeSessionSetupReq, h.sessionSetup},
		{StateWaitForServiceDiscovery, message.TypeServiceDiscoveryReq, h.serviceDiscovery},
		{StateWaitForPaymentSelection, message.TypePaymentServiceSelectionReq, h.paymentSelection},
		{StateWaitForAuthorization, message.TypeAuthorizationReq, h.authorization},
		{StateWaitForPowerDelivery, message.TypePowerDeliveryReq, h.powerDelivery},
		{StateWaitForPowerDelivery, message.TypeSessionStopReq, h.sessionStop},
		{StateCharging, message.TypePowerDeliveryReq, h.powerDelivery},
		{StateWaitForSessionStop, message.TypeSessionStopReq, h.sessionStop},
	} {
		if err := r.RegisterFunc(reg.state, reg.typ, reg.fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// handshake selects the highest priority offer of the main exchange
// protocol.
func (h *handlers) handshake(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	var best *message.AppProtocol
	for _, p := range msg.AppProtocols() {
		if p.Namespace != message.ProtocolNamespace || p.Major != message.ProtocolMajor {
			continue
		}
		if best == nil || p.Priority < best.Priority {
			best = &p
		}
	}

	if best == nil {
		res := message.NewSupportedAppProtocolRes(message.HandshakeFailed, 0)
		return session.Terminate("no supported protocol offered", false).Reply(res), nil
	}

	code := message.HandshakeOK
	if best.Minor != message.ProtocolMinor {
		code = message.HandshakeOKMinorDeviation
	}
	if h.log != nil {
		h.log.Debugf("negotiated %s %d.%d (schema %d)", best.Namespace, best.Major, best.Minor, best.SchemaID)
	}
	res := message.NewSupportedAppProtocolRes(code, best.SchemaID)
	return session.NextState(StateWaitForSessionSetup, res).WithPhase(grammar.PhaseMainExchange), nil
}

// sessionSetup joins a paused session whose identifier the EV presents,
// and starts a new one otherwise.
func (h *handlers) sessionSetup(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	code := message.ResponseOKNewSessionEstablished

	requested := session.ID(msg.SessionID)
	if old, ok := h.findPaused(requested); ok {
		ctx.ResumeID(requested.Value())
		if err := old.Terminate("joined by a new connection", true); err != nil && h.log != nil {
			h.log.Warnf("retire paused session %s: %v", requested, err)
		}
		code = message.ResponseOKOldSessionJoined
	} else if _, err := ctx.GenerateID(); err != nil {
		return session.Outcome{}, err
	}

	res := message.NewSessionSetupRes(code, h.cfg.EVSEID, h.cfg.Now().Unix())
	return session.NextState(StateWaitForServiceDiscovery, res), nil
}

func (h *handlers) findPaused(id session.ID) (*session.Session, bool) {
	if h.resumer == nil || id.IsZero() {
		return nil, false
	}
	s, _, ok := h.resumer.FindPaused(id)
	return s, ok
}

func (h *handlers) serviceDiscovery(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	res := message.NewServiceDiscoveryRes(message.ResponseOK, h.cfg.PaymentOptions, message.ChargeService{
		ServiceID:     h.cfg.ServiceID,
		Free:          h.cfg.FreeService,
		TransferModes: h.cfg.TransferModes,
	})
	return session.NextState(StateWaitForPaymentSelection, res), nil
}

func (h *handlers) paymentSelection(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	option, ids, _ := msg.PaymentSelection()
	if !slices.Contains(h.cfg.PaymentOptions, option) {
		res := message.NewResponse(message.TypePaymentServiceSelectionRes, message.ResponseFailedPaymentSelectionInvalid)
		return session.Terminate(fmt.Sprintf("payment option %q not offered", option), false).Reply(res), nil
	}
	if !slices.Contains(ids, h.cfg.ServiceID) {
		res := message.NewResponse(message.TypePaymentServiceSelectionRes, message.ResponseFailedServiceIDInvalid)
		return session.Terminate("charge service not selected", false).Reply(res), nil
	}

	res := message.NewResponse(message.TypePaymentServiceSelectionRes, message.ResponseOK)
	return session.NextState(StateWaitForAuthorization, res), nil
}

func (h *handlers) authorization(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	res := message.NewAuthorizationRes(message.ResponseOK, message.ProcessingFinished)
	return session.NextState(StateWaitForPowerDelivery, res), nil
}

func (h *handlers) powerDelivery(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	progress, _ := msg.ChargeProgress()

	next := ctx.State()
	switch {
	case progress == message.ChargeProgressStart && ctx.State() == StateWaitForPowerDelivery:
		next = StateCharging
	case progress == message.ChargeProgressStop && ctx.State() == StateCharging:
		next = StateWaitForSessionStop
	case progress == message.ChargeProgressRenegotiate && ctx.State() == StateCharging:
	default:
		res := message.NewResponse(message.TypePowerDeliveryRes, message.ResponseFailed)
		return session.Terminate(fmt.Sprintf("charge progress %q in %s", progress, ctx.State()), false).Reply(res), nil
	}

	if h.log != nil {
		h.log.Infof("session %s power delivery %s", ctx.ID(), progress)
	}
	return session.NextState(next, message.NewResponse(message.TypePowerDeliveryRes, message.ResponseOK)), nil
}

// sessionStop terminates or pauses. A paused session keeps its identifier
// as the resumption token.
func (h *handlers) sessionStop(ctx *session.Context, msg *message.Message) (session.Outcome, error) {
	res := message.NewResponse(message.TypeSessionStopRes, message.ResponseOK)

	cs, _ := msg.ChargingSession()
	if cs == message.ChargingSessionPause {
		return session.Pause(ctx.ID().String()).Reply(res), nil
	}
	return session.Terminate("session stopped by EV", true).Reply(res), nil
}

// sequenceError returns the FAILED_SequenceError response to a main
// exchange request that arrived out of order, or nil when t has none.
func (h *handlers) sequenceError(t message.Type) *message.Message {
	if !t.IsRequest() || t.Phase() != grammar.PhaseMainExchange {
		return nil
	}
	code := message.ResponseFailedSequenceError
	switch t {
	case message.TypeSessionSetupReq:
		return message.NewSessionSetupRes(code, h.cfg.EVSEID, h.cfg.Now().Unix())
	case message.TypeServiceDiscoveryReq:
		return message.NewServiceDiscoveryRes(code, h.cfg.PaymentOptions, message.ChargeService{
			ServiceID:     h.cfg.ServiceID,
			Free:          h.cfg.FreeService,
			TransferModes: h.cfg.TransferModes,
		})
	case message.TypeAuthorizationReq:
		return message.NewAuthorizationRes(code, message.ProcessingFinished)
	}
	return message.NewResponse(t.Response(), code)
}
