package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hakehuang/devlink/link/common"
)

const (
	// HeaderSize is the fixed size of a frame header:
	// length (4) + command (2) + message id (4) + checksum (2)
	HeaderSize = 12

	// checksumOffset is the position of the checksum inside the header
	checksumOffset = 10
)

var (
	// ErrLength signals a header whose length field is smaller than the
	// header itself. The connection cannot be resynchronized afterwards.
	ErrLength = errors.New("wire: frame length smaller than header")

	// ErrChecksum signals a checksum mismatch. The connection cannot be
	// resynchronized afterwards.
	ErrChecksum = errors.New("wire: checksum mismatch")
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is one decoded wire unit. It exists only in transit.
type Message struct {
	Cmd     common.Command
	ID      uint32
	Payload []byte
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode produces a complete frame:
//
//	length:uint32 BE | command:2 bytes | id:uint32 BE | checksum:uint16 BE | payload
//
// where length covers the whole frame including the header. The checksum is
// a byte-wise XOR fold over header-without-checksum plus payload, packed big
// endian into 16 bits. This is a weak detector kept for wire compatibility,
// not a CRC.
func Encode(cmd common.Command, id uint32, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))

	binary.BigEndian.PutUint32(frame[0:4], uint32(HeaderSize+len(payload)))
	copy(frame[4:6], cmd[:])
	binary.BigEndian.PutUint32(frame[6:10], id)
	copy(frame[HeaderSize:], payload)

	sum := fold(frame[:checksumOffset], frame[HeaderSize:])
	binary.BigEndian.PutUint16(frame[checksumOffset:HeaderSize], sum)

	return frame
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode extracts the first complete frame from buf.
//
// It returns the decoded message and the number of bytes consumed. A consumed
// count of zero with a nil error means the buffer does not yet hold a full
// frame and more data must be read. A non-nil error (ErrLength, ErrChecksum)
// means the stream is corrupt; the caller must close the connection since the
// protocol has no resynchronization strategy.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < HeaderSize {
		return Message{}, 0, nil
	}

	length := binary.BigEndian.Uint32(buf[0:4])
	if length < HeaderSize {
		return Message{}, 0, fmt.Errorf("%w: %d", ErrLength, length)
	}
	if uint32(len(buf)) < length {
		return Message{}, 0, nil
	}

	frame := buf[:length]
	payload := frame[HeaderSize:]

	received := binary.BigEndian.Uint16(frame[checksumOffset:HeaderSize])
	if expected := fold(frame[:checksumOffset], payload); expected != received {
		return Message{}, 0, fmt.Errorf("%w: got 0x%04x, want 0x%04x", ErrChecksum, received, expected)
	}

	var cmd common.Command
	copy(cmd[:], frame[4:6])

	msg := Message{
		Cmd:     cmd,
		ID:      binary.BigEndian.Uint32(frame[6:10]),
		Payload: payload,
	}
	return msg, int(length), nil
}

// --------------------------------------------------------------------------
// Checksum
// --------------------------------------------------------------------------

// fold XORs every byte of the given slices into a single accumulator.
// Single byte flips are detected, but two identical flips cancel out.
func fold(parts ...[]byte) uint16 {
	var sum byte
	for _, part := range parts {
		for _, b := range part {
			sum ^= b
		}
	}
	return uint16(sum)
}
