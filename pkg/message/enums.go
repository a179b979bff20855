// Package message defines the typed protocol messages exchanged by a session
// and binds them to the codec's element event stream.
//
// Handshake messages are encoded as their own document root. Main exchange
// messages are wrapped in a V2G_Message envelope whose header carries the
// 8-byte session identifier and whose body holds exactly one message.
package message

import (
	"github.com/backkem/v2g/pkg/grammar"
)

// Type identifies a message. The set is closed.
type Type uint8

const (
	TypeUnknown Type = iota

	// Handshake phase
	TypeSupportedAppProtocolReq
	TypeSupportedAppProtocolRes

	// Main exchange phase
	TypeSessionSetupReq
	TypeSessionSetupRes
	TypeServiceDiscoveryReq
	TypeServiceDiscoveryRes
	TypePaymentServiceSelectionReq
	TypePaymentServiceSelectionRes
	TypeAuthorizationReq
	TypeAuthorizationRes
	TypePowerDeliveryReq
	TypePowerDeliveryRes
	TypeSessionStopReq
	TypeSessionStopRes

	typeCount
)

// Element names as they appear in the schemas.
var typeNames = [typeCount]string{
	TypeUnknown:                    "Unknown",
	TypeSupportedAppProtocolReq:    "supportedAppProtocolReq",
	TypeSupportedAppProtocolRes:    "supportedAppProtocolRes",
	TypeSessionSetupReq:            "SessionSetupReq",
	TypeSessionSetupRes:            "SessionSetupRes",
	TypeServiceDiscoveryReq:        "ServiceDiscoveryReq",
	TypeServiceDiscoveryRes:        "ServiceDiscoveryRes",
	TypePaymentServiceSelectionReq: "PaymentServiceSelectionReq",
	TypePaymentServiceSelectionRes: "PaymentServiceSelectionRes",
	TypeAuthorizationReq:           "AuthorizationReq",
	TypeAuthorizationRes:           "AuthorizationRes",
	TypePowerDeliveryReq:           "PowerDeliveryReq",
	TypePowerDeliveryRes:           "PowerDeliveryRes",
	TypeSessionStopReq:             "SessionStopReq",
	TypeSessionStopRes:             "SessionStopRes",
}

// String returns the schema element name of the message type.
func (t Type) String() string {
	if t >= typeCount {
		return "Unknown"
	}
	return typeNames[t]
}

// IsValid returns true if the type is a defined message.
func (t Type) IsValid() bool {
	return t > TypeUnknown && t < typeCount
}

// Phase returns the phase whose schema governs the message.
func (t Type) Phase() grammar.Phase {
	if t == TypeSupportedAppProtocolReq || t == TypeSupportedAppProtocolRes {
		return grammar.PhaseHandshake
	}
	return grammar.PhaseMainExchange
}

// IsRequest returns true for messages sent by the initiating party.
func (t Type) IsRequest() bool {
	return t.IsValid() && (t-TypeSupportedAppProtocolReq)%2 == 0
}

// Response returns the response type paired with a request type, or
// TypeUnknown.
func (t Type) Response() Type {
	if !t.IsRequest() {
		return TypeUnknown
	}
	return t + 1
}

// AllowsUnassignedSession returns true if the message may carry the
// all-zero session identifier. Only handshake messages and the session
// setup request are sent before an identifier exists.
func (t Type) AllowsUnassignedSession() bool {
	return t.Phase() == grammar.PhaseHandshake || t == TypeSessionSetupReq
}

// ParseType returns the type for a schema element name.
func ParseType(name string) (Type, error) {
	for t := TypeUnknown + 1; t < typeCount; t++ {
		if typeNames[t] == name {
			return t, nil
		}
	}
	return TypeUnknown, ErrUnknownType
}

// Types returns every defined message type in declaration order.
func Types() []Type {
	out := make([]Type, 0, typeCount-1)
	for t := TypeUnknown + 1; t < typeCount; t++ {
		out = append(out, t)
	}
	return out
}

// ResponseCode is the outcome reported by main exchange responses.
type ResponseCode string

const (
	ResponseOK                            ResponseCode = "OK"
	ResponseOKNewSessionEstablished       ResponseCode = "OK_NewSessionEstablished"
	ResponseOKOldSessionJoined            ResponseCode = "OK_OldSessionJoined"
	ResponseFailed                        ResponseCode = "FAILED"
	ResponseFailedSequenceError           ResponseCode = "FAILED_SequenceError"
	ResponseFailedServiceIDInvalid        ResponseCode = "FAILED_ServiceIDInvalid"
	ResponseFailedUnknownSession          ResponseCode = "FAILED_UnknownSession"
	ResponseFailedPaymentSelectionInvalid ResponseCode = "FAILED_PaymentSelectionInvalid"
)

// IsOK returns true for the OK family of codes.
func (c ResponseCode) IsOK() bool {
	return len(c) >= 2 && c[:2] == "OK"
}

// ChargingSession selects what a SessionStopReq asks for.
type ChargingSession string

const (
	ChargingSessionTerminate ChargingSession = "Terminate"
	ChargingSessionPause     ChargingSession = "Pause"
)
