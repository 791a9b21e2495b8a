// Package endpoint implements the connection endpoint shared by the client
// and the server side of the device messaging framework, together with the
// command dispatch table and the pending command table used for
// request/response correlation.
//
// The package focuses on:
//   - One dedicated receive loop per connection that performs the only
//     blocking reads, extracts frames via the wire codec and dispatches
//     them synchronously
//   - Concurrency safe sending: whole frames are written under a mutex so
//     application goroutines may send while the loop is reading
//   - Failure isolation: an unknown command or a panicking handler is
//     logged and dropped without terminating the loop, while a corrupt
//     frame tears the connection down
//
// Key Components:
//
//   - Endpoint: owns one socket, the accumulation buffer and the monotonic
//     message id counter. Close unblocks the pending read and waits for the
//     loop to exit; it is idempotent.
//
//   - Dispatcher: maps a two byte command code to a handler, exactly one
//     handler per code (last registration wins).
//
//   - PendingTable: maps an outgoing message id to a one-shot continuation.
//     Resolution uses an atomic load-and-delete so a continuation can never
//     run twice. Eviction is optional and disabled by default.
//
// Thread Safety:
//
//	All public methods are thread-safe. Handlers run on the receive loop
//	of the endpoint the message arrived on; a handler must not call Close
//	on its own endpoint.
package endpoint
