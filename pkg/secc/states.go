// Package secc implements the charging station side of a conversation:
// the handler set it registers and a Server that serves one session per
// connection.
package secc

import "github.com/backkem/v2g/pkg/session"

// Charging station states. The conversation starts in session.StateStart,
// waiting for the handshake.
var (
	StateWaitForSessionSetup     = session.DefineState("SECC.WaitForSessionSetup")
	StateWaitForServiceDiscovery = session.DefineState("SECC.WaitForServiceDiscovery")
	StateWaitForPaymentSelection = session.DefineState("SECC.WaitForPaymentSelection")
	StateWaitForAuthorization    = session.DefineState("SECC.WaitForAuthorization")
	StateWaitForPowerDelivery    = session.DefineState("SECC.WaitForPowerDelivery")
	StateCharging                = session.DefineState("SECC.Charging")
	StateWaitForSessionStop      = session.DefineState("SECC.WaitForSessionStop")
)
