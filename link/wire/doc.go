// Package wire implements the binary framing codec of the device messaging
// protocol. A frame is one length-prefixed wire unit:
//
//	length:uint32 BE | command:2 bytes | id:uint32 BE | checksum:uint16 BE | payload
//
// The length field covers the whole frame including the 12 byte header. The
// checksum is a byte-wise XOR fold over the header-without-checksum plus the
// payload, packed big endian into 16 bits.
//
// The codec is a pair of pure functions. Encode builds a complete frame from
// command, id and payload. Decode consumes the first complete frame from an
// accumulation buffer, reporting "incomplete" (zero consumed bytes, nil
// error) when the buffer does not yet hold a full frame. Decoding fails
// closed on a malformed length or a checksum mismatch; the protocol has no
// resynchronization strategy, so the caller must tear down the connection in
// that case.
//
// Thread Safety:
//
//	Encode and Decode share no state and are safe for concurrent use. The
//	payload returned by Decode aliases the input buffer and is only valid
//	until the buffer is reused.
package wire
