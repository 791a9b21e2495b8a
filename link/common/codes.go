package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Command Code Definition
// --------------------------------------------------------------------------

// Command is the fixed-width two byte command code carried in every frame
// header. The transport itself is agnostic to the meaning of a code; the
// constants below are the vocabulary used by the bundled services. Any other
// value is legal on the wire and can be registered with a dispatcher.
type Command [2]byte

// CommandOf creates a Command from a string. Only the first two bytes of the
// string are used; shorter strings are zero padded.
func CommandOf(s string) Command {
	var c Command
	copy(c[:], s)
	return c
}

// String returns the ASCII representation of the command code.
func (c Command) String() string {
	return string(c[:])
}

// MarshalJSON implements the json.Marshaller interface for Command.
// This allows Command to be serialized as a string in JSON.
func (c Command) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Command.
func (c *Command) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) != 2 {
		return fmt.Errorf("invalid command code: %q", s)
	}
	*c = CommandOf(s)
	return nil
}

// --------------------------------------------------------------------------
// Command Vocabulary
// --------------------------------------------------------------------------

// The header carries exactly two bytes per command, so every code in the
// vocabulary is a distinct two letter pair.
var (
	CmdConnect    = Command{'C', 'N'} // device announces itself
	CmdConnectAck = Command{'C', 'A'} // acknowledgement for CmdConnect
	CmdDisconnect = Command{'D', 'C'} // device signs off
	CmdStatus     = Command{'S', 'T'} // device status update
	CmdCommand    = Command{'C', 'M'} // control command targeting one device
	CmdCmdResult  = Command{'C', 'R'} // response for CmdCommand
	CmdTelemetry  = Command{'D', 'T'} // telemetry reading
	CmdGetData    = Command{'G', 'D'} // request a telemetry reading
	CmdBroadcast  = Command{'D', 'B'} // data fan-out from the hub
)
