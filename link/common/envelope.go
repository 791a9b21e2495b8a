package common

// --------------------------------------------------------------------------
// Envelope Structure
// --------------------------------------------------------------------------

// Envelope represents the structured payload carried inside a frame for the
// device oriented commands. Which fields are used depends on the command the
// envelope travels under.
type Envelope struct {
	// General fields
	DeviceID string            `json:"device_id,omitempty"` // Used for: all device scoped commands
	Status   string            `json:"status,omitempty"`    // Used for: CN (initial), ST
	Metadata map[string]string `json:"metadata,omitempty"`  // Used for: CN

	// Correlation fields
	RequestID uint32 `json:"request_id,omitempty"` // Used for: CM (request), CR (response)
	Code      string `json:"code,omitempty"`       // Used for: CM command code
	Params    []byte `json:"params,omitempty"`     // Used for: CM command parameters

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: CA, CR
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Telemetry fields
	Timestamp int64  `json:"timestamp,omitempty"` // Used for: DT, unix nanoseconds
	Value     []byte `json:"value,omitempty"`     // Used for: DT reading, CR response data
}

// --------------------------------------------------------------------------
// Envelope Factory Functions
// --------------------------------------------------------------------------

// NewConnectEnvelope creates the payload for a CN frame
func NewConnectEnvelope(deviceID, status string, metadata map[string]string) *Envelope {
	return &Envelope{
		DeviceID: deviceID,
		Status:   status,
		Metadata: metadata,
	}
}

// NewConnectAckEnvelope creates the payload for a CA frame
func NewConnectAckEnvelope(deviceID string, ok bool, msg string) *Envelope {
	env := &Envelope{
		DeviceID: deviceID,
		Ok:       ok,
	}
	if !ok {
		env.Err = msg
	}
	return env
}

// NewDisconnectEnvelope creates the payload for a DC frame
func NewDisconnectEnvelope(deviceID string) *Envelope {
	return &Envelope{
		DeviceID: deviceID,
	}
}

// NewStatusEnvelope creates the payload for a ST frame
func NewStatusEnvelope(deviceID, status string) *Envelope {
	return &Envelope{
		DeviceID: deviceID,
		Status:   status,
	}
}

// NewCommandEnvelope creates the payload for a CM frame. The requestID is the
// correlation id the matching CR response must echo back.
func NewCommandEnvelope(requestID uint32, deviceID, code string, params []byte) *Envelope {
	return &Envelope{
		RequestID: requestID,
		DeviceID:  deviceID,
		Code:      code,
		Params:    params,
	}
}

// NewCmdResultEnvelope creates the payload for a CR frame
func NewCmdResultEnvelope(requestID uint32, deviceID string, ok bool, data []byte, err error) *Envelope {
	env := &Envelope{
		RequestID: requestID,
		DeviceID:  deviceID,
		Ok:        ok,
		Value:     data,
	}
	if err != nil {
		env.Err = err.Error()
	}
	return env
}

// NewTelemetryEnvelope creates the payload for a DT frame
func NewTelemetryEnvelope(deviceID string, timestamp int64, value []byte) *Envelope {
	return &Envelope{
		DeviceID:  deviceID,
		Timestamp: timestamp,
		Value:     value,
	}
}

// NewGetDataEnvelope creates the payload for a GD frame
func NewGetDataEnvelope(deviceID string) *Envelope {
	return &Envelope{
		DeviceID: deviceID,
	}
}
