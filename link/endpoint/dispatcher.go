package endpoint

import (
	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Command Dispatch Table
// --------------------------------------------------------------------------

// HandlerFunc is a function type that handles one inbound message.
// It is invoked synchronously on the receive loop of the endpoint the
// message arrived on; the endpoint parameter can be used to reply.
type HandlerFunc func(ep *Endpoint, msg wire.Message)

// Dispatcher maps a command code to its handler. Every endpoint holds a
// reference to one dispatcher; server and client typically share a single
// dispatcher between all their endpoints.
type Dispatcher struct {
	handlers *xsync.MapOf[common.Command, HandlerFunc]
}

// NewDispatcher creates an empty dispatch table
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: xsync.NewMapOf[common.Command, HandlerFunc](),
	}
}

// Register installs the handler for a command code. There is exactly one
// handler per code; registering twice replaces the previous handler.
func (d *Dispatcher) Register(cmd common.Command, handler HandlerFunc) {
	d.handlers.Store(cmd, handler)
}

// lookup returns the handler registered for a command code
func (d *Dispatcher) lookup(cmd common.Command) (HandlerFunc, bool) {
	return d.handlers.Load(cmd)
}
