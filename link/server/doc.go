// Package server implements the hub side of the device messaging framework:
// an accept loop plus a concurrency safe registry of connected endpoints
// with targeted send and broadcast.
//
// The package focuses on:
//   - One goroutine per connection performing the only blocking I/O; all
//     decoding and handler dispatch happen inside that worker
//   - A registry keyed by peer address, mutated on accept and on endpoint
//     teardown, never by application code directly
//   - Broadcast that encodes the frame once and tolerates partial failure:
//     a connection whose write fails is evicted and closed while the
//     remaining connections still receive the frame
//
// Key Components:
//
//   - Server: owns the listener, the accept loop, the shared dispatcher and
//     the endpoint registry. Stop closes the listener and every endpoint
//     and joins all worker loops.
//
//   - IListener: interface for protocol-specific listen and socket tuning
//     operations, implemented for TCP.
//
// Thread Safety:
//
//	All public methods are thread-safe. Broadcast and Send may be called
//	from handlers running on any receive loop.
package server
