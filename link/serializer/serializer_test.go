package serializer

import (
	"reflect"
	"testing"

	"github.com/hakehuang/devlink/link/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() ISerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

// testEnvelopes creates a set of test envelopes with different fields filled
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// Connect announcement
		{
			DeviceID: "device1",
			Status:   "online",
			Metadata: map[string]string{"model": "vsc-7", "fw": "1.0.3"},
		},

		// Connect acknowledgement
		{
			DeviceID: "device1",
			Ok:       true,
		},

		// Status update
		{
			DeviceID: "device1",
			Status:   "degraded",
		},

		// Command with correlation id
		{
			RequestID: 1042,
			DeviceID:  "device2",
			Code:      "REBOOT",
			Params:    []byte{0x05},
		},

		// Command result with error
		{
			RequestID: 1042,
			DeviceID:  "device2",
			Ok:        false,
			Err:       "device busy",
		},

		// Telemetry reading
		{
			DeviceID:  "device1",
			Timestamp: 1724900000000000000,
			Value:     []byte("23.5"),
		},
	}
}

// TestSerializerRoundTrip tests that envelopes can be serialized and
// deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	envelopes := testEnvelopes()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, env := range envelopes {
				// Serialize
				data, err := serializer.Serialize(env)
				if err != nil {
					t.Errorf("Failed to serialize envelope %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Envelope
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize envelope %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(env, result) {
					t.Errorf("Envelope %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, env, result)
				}
			}
		})
	}
}

// TestFactoryFunctions tests that the envelope factories fill the fields the
// services rely on
func TestFactoryFunctions(t *testing.T) {
	if env := common.NewConnectAckEnvelope("d1", false, "rejected"); env.Err != "rejected" || env.Ok {
		t.Errorf("NewConnectAckEnvelope: unexpected %+v", env)
	}
	if env := common.NewConnectAckEnvelope("d1", true, "ignored"); env.Err != "" || !env.Ok {
		t.Errorf("NewConnectAckEnvelope: error message kept on success: %+v", env)
	}
	if env := common.NewCommandEnvelope(7, "d1", "SETP", []byte{5}); env.RequestID != 7 || env.Code != "SETP" {
		t.Errorf("NewCommandEnvelope: unexpected %+v", env)
	}
	if env := common.NewCmdResultEnvelope(7, "d1", true, []byte("ok"), nil); env.Err != "" || !env.Ok {
		t.Errorf("NewCmdResultEnvelope: unexpected %+v", env)
	}
}
