// Package devices implements the device registry service on top of the
// messaging link. It consumes connect, disconnect and status announcements,
// keeps one entry per announced device and acknowledges each connect back to
// the announcing connection.
//
// The registry is transport agnostic: Attach installs its handlers on any
// dispatch table, so it runs unchanged behind a client connector or a hub
// server.
package devices
