package message

// Protocol advertised in the handshake for the main exchange schema.
const (
	ProtocolNamespace = "urn:iso:15118:2:2013:MsgDef"
	ProtocolMajor     = 2
	ProtocolMinor     = 0
)

// Payment options.
const (
	PaymentContract        = "Contract"
	PaymentExternalPayment = "ExternalPayment"
)

// EVSEProcessing values of an AuthorizationRes.
const (
	ProcessingFinished = "Finished"
	ProcessingOngoing  = "Ongoing"
)

// ChargeProgress values of a PowerDeliveryReq.
const (
	ChargeProgressStart       = "Start"
	ChargeProgressStop        = "Stop"
	ChargeProgressRenegotiate = "Renegotiate"
)

// EVCCID returns the identifier carried by a SessionSetupReq.
func (m *Message) EVCCID() ([]byte, bool) {
	if m.Type != TypeSessionSetupReq {
		return nil, false
	}
	return m.Body.OctetsOf("EVCCID")
}

// EVSEID returns the identifier carried by a SessionSetupRes.
func (m *Message) EVSEID() (string, bool) {
	if m.Type != TypeSessionSetupRes {
		return "", false
	}
	return m.Body.TextOf("EVSEID")
}

// Offer returns the payment options and charge service of a
// ServiceDiscoveryRes.
func (m *Message) Offer() ([]string, ChargeService, bool) {
	if m.Type != TypeServiceDiscoveryRes {
		return nil, ChargeService{}, false
	}

	var options []string
	if list := m.Body.Child("PaymentOptionList"); list != nil {
		for _, e := range list.ChildrenNamed("PaymentOption") {
			if s, ok := e.Value.(string); ok {
				options = append(options, s)
			}
		}
	}

	cs := m.Body.Child("ChargeService")
	if cs == nil {
		return options, ChargeService{}, false
	}
	var svc ChargeService
	svc.ServiceID, _ = cs.UintOf("ServiceID")
	if free := cs.Child("FreeService"); free != nil {
		svc.Free, _ = free.Value.(bool)
	}
	if modes := cs.Child("SupportedEnergyTransferMode"); modes != nil {
		for _, e := range modes.ChildrenNamed("EnergyTransferMode") {
			if s, ok := e.Value.(string); ok {
				svc.TransferModes = append(svc.TransferModes, s)
			}
		}
	}
	return options, svc, true
}

// PaymentSelection returns the option and service ids of a
// PaymentServiceSelectionReq.
func (m *Message) PaymentSelection() (string, []uint64, bool) {
	if m.Type != TypePaymentServiceSelectionReq {
		return "", nil, false
	}
	option, ok := m.Body.TextOf("SelectedPaymentOption")
	var ids []uint64
	if list := m.Body.Child("SelectedServiceList"); list != nil {
		for _, e := range list.ChildrenNamed("SelectedService") {
			if id, ok := e.UintOf("ServiceID"); ok {
				ids = append(ids, id)
			}
		}
	}
	return option, ids, ok
}

// EVSEProcessing returns the processing status of an AuthorizationRes.
func (m *Message) EVSEProcessing() (string, bool) {
	if m.Type != TypeAuthorizationRes {
		return "", false
	}
	return m.Body.TextOf("EVSEProcessing")
}

// ChargeProgress returns the requested progress of a PowerDeliveryReq.
func (m *Message) ChargeProgress() (string, bool) {
	if m.Type != TypePowerDeliveryReq {
		return "", false
	}
	return m.Body.TextOf("ChargeProgress")
}
