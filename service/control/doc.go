// Package control implements the remote command invoker: a request/response
// layer over the asynchronous link. A command carries its correlation id in
// the payload, the matching response echoes it back, and the continuation
// registered at invocation time runs exactly once when the response arrives.
package control
