package message

import (
	"github.com/backkem/v2g/pkg/exi"
)

// Handshake negotiation outcomes.
const (
	HandshakeOK               = "OK_SuccessfulNegotiation"
	HandshakeOKMinorDeviation = "OK_SuccessfulNegotiationWithMinorDeviation"
	HandshakeFailed           = "Failed_NoNegotiation"
)

// AppProtocol is one entry of a supportedAppProtocolReq.
type AppProtocol struct {
	Namespace string
	Major     uint64
	Minor     uint64
	SchemaID  uint64
	Priority  uint64
}

func (p AppProtocol) element() *exi.Element {
	return exi.NewElement("AppProtocol",
		exi.Text("ProtocolNamespace", p.Namespace),
		exi.Uint("VersionNumberMajor", p.Major),
		exi.Uint("VersionNumberMinor", p.Minor),
		exi.Uint("SchemaID", p.SchemaID),
		exi.Uint("Priority", p.Priority),
	)
}

// NewSupportedAppProtocolReq lists the protocols offered by the initiator.
func NewSupportedAppProtocolReq(protocols ...AppProtocol) *Message {
	m := New(TypeSupportedAppProtocolReq)
	for _, p := range protocols {
		m.Body.Add(p.element())
	}
	return m
}

// AppProtocols returns the protocols listed in a supportedAppProtocolReq.
func (m *Message) AppProtocols() []AppProtocol {
	if m.Type != TypeSupportedAppProtocolReq {
		return nil
	}
	var out []AppProtocol
	for _, e := range m.Body.ChildrenNamed("AppProtocol") {
		ns, _ := e.TextOf("ProtocolNamespace")
		major, _ := e.UintOf("VersionNumberMajor")
		minor, _ := e.UintOf("VersionNumberMinor")
		id, _ := e.UintOf("SchemaID")
		prio, _ := e.UintOf("Priority")
		out = append(out, AppProtocol{Namespace: ns, Major: major, Minor: minor, SchemaID: id, Priority: prio})
	}
	return out
}

// NewSupportedAppProtocolRes answers the handshake. The schema id is only
// included on success.
func NewSupportedAppProtocolRes(code string, schemaID uint64) *Message {
	m := New(TypeSupportedAppProtocolRes, exi.Text("ResponseCode", code))
	if code != HandshakeFailed {
		m.Body.Add(exi.Uint("SchemaID", schemaID))
	}
	return m
}

// NewSessionSetupReq starts a session for the given EVCC identifier.
func NewSessionSetupReq(evccID []byte) *Message {
	return New(TypeSessionSetupReq, exi.Octets("EVCCID", evccID))
}

// NewSessionSetupRes answers a session setup.
func NewSessionSetupRes(code ResponseCode, evseID string, timestamp int64) *Message {
	return New(TypeSessionSetupRes,
		exi.Text("ResponseCode", string(code)),
		exi.Text("EVSEID", evseID),
		exi.Int("EVSETimeStamp", timestamp),
	)
}

// NewServiceDiscoveryReq asks for all offered services.
func NewServiceDiscoveryReq() *Message {
	return New(TypeServiceDiscoveryReq)
}

// ChargeService describes the charge service in a ServiceDiscoveryRes.
type ChargeService struct {
	ServiceID     uint64
	Free          bool
	TransferModes []string
}

// NewServiceDiscoveryRes answers service discovery.
func NewServiceDiscoveryRes(code ResponseCode, paymentOptions []string, svc ChargeService) *Message {
	options := exi.NewElement("PaymentOptionList")
	for _, o := range paymentOptions {
		options.Add(exi.Text("PaymentOption", o))
	}
	modes := exi.NewElement("SupportedEnergyTransferMode")
	for _, mode := range svc.TransferModes {
		modes.Add(exi.Text("EnergyTransferMode", mode))
	}
	return New(TypeServiceDiscoveryRes,
		exi.Text("ResponseCode", string(code)),
		options,
		exi.NewElement("ChargeService",
			exi.Uint("ServiceID", svc.ServiceID),
			exi.Text("ServiceCategory", "EVCharging"),
			exi.Bool("FreeService", svc.Free),
			modes,
		),
	)
}

// NewPaymentServiceSelectionReq selects a payment option and services.
func NewPaymentServiceSelectionReq(option string, serviceIDs ...uint64) *Message {
	list := exi.NewElement("SelectedServiceList")
	for _, id := range serviceIDs {
		list.Add(exi.NewElement("SelectedService", exi.Uint("ServiceID", id)))
	}
	return New(TypePaymentServiceSelectionReq,
		exi.Text("SelectedPaymentOption", option),
		list,
	)
}

// NewAuthorizationReq asks whether charging is authorized.
func NewAuthorizationReq() *Message {
	return New(TypeAuthorizationReq)
}

// NewAuthorizationRes answers an authorization request.
func NewAuthorizationRes(code ResponseCode, processing string) *Message {
	return New(TypeAuthorizationRes,
		exi.Text("ResponseCode", string(code)),
		exi.Text("EVSEProcessing", processing),
	)
}

// NewPowerDeliveryReq starts, stops or renegotiates power flow.
func NewPowerDeliveryReq(progress string, tupleID uint64) *Message {
	return New(TypePowerDeliveryReq,
		exi.Text("ChargeProgress", progress),
		exi.Uint("SAScheduleTupleID", tupleID),
	)
}

// NewSessionStopReq ends or pauses the session.
func NewSessionStopReq(cs ChargingSession) *Message {
	return New(TypeSessionStopReq, exi.Text("ChargingSession", string(cs)))
}

// ChargingSession returns the choice carried by a SessionStopReq.
func (m *Message) ChargingSession() (ChargingSession, bool) {
	if m.Type != TypeSessionStopReq {
		return "", false
	}
	s, ok := m.Body.TextOf("ChargingSession")
	return ChargingSession(s), ok
}

// NewResponse returns a response that carries only a response code:
// PaymentServiceSelectionRes, PowerDeliveryRes or SessionStopRes.
func NewResponse(t Type, code ResponseCode) *Message {
	return New(t, exi.Text("ResponseCode", string(code)))
}
