// Package link provides the messaging layer of the devlink framework: a
// length-prefixed binary protocol over stream sockets, connection endpoints
// with command dispatch, and the client and hub roles built on top of them.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the link layer,
//     including the command vocabulary, the payload Envelope, configuration
//     structures, logging and metrics.
//
//   - wire: The frame codec. Encoding and decoding of the length-prefixed
//     header with its XOR checksum.
//
//   - serializer: Envelope serialization with multiple format options (JSON,
//     GOB) for converting between Envelope objects and byte arrays.
//
//   - endpoint: The connection endpoint with its dedicated receive loop, the
//     command dispatch table and the pending-command table used for
//     request/response correlation.
//
//   - client: The connector a device or monitor uses to reach a hub, with
//     bounded-retry connect and pluggable transports (TCP, Unix sockets).
//
//   - server: The hub side: accept loop, connection registry, targeted send
//     and broadcast.
package link
