// Package client implements the client side of the device messaging
// framework: a connector that wraps one connection endpoint with
// bounded-retry connect and idempotent disconnect.
//
// The package focuses on:
//   - Bounded retries with a fixed delay between attempts. The simplicity
//     is deliberate: callers that want backoff or an unbounded budget loop
//     over Connect themselves.
//   - A dispatcher that belongs to the connector rather than the endpoint,
//     so handler registrations survive reconnects.
//   - Transport abstraction through the IConnector interface; the TCP
//     implementation applies socket tuning (no-delay, buffer sizes,
//     keep-alive) from the client configuration.
//
// The connector moves through Disconnected -> Connecting -> Connected and
// returns to Disconnected on an exhausted retry budget, a peer close, an
// I/O error or an explicit Disconnect.
package client
