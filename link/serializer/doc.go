// Package serializer provides Envelope serialization for the device
// messaging framework with multiple format options. A frame payload on the
// wire is an opaque byte sequence; the serializers convert between Envelope
// values and those bytes.
//
// Key Components:
//
//   - ISerializer: the interface all serializers implement.
//
//   - NewJSONSerializer: human readable encoding, the default. Useful for
//     debugging since payloads can be inspected on the wire.
//
//   - NewGOBSerializer: Go native binary encoding, more compact than JSON.
//
// All implementations are stateless and safe for concurrent use.
package serializer
