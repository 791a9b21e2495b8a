package control

import (
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("service/control")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// ITransport is the sending surface the invoker needs: up-front id
// allocation so a command can be tracked before its frame leaves the
// process. The connection endpoint satisfies it.
type ITransport interface {
	NextID() uint32
	SendWithID(cmd common.Command, id uint32, payload []byte) error
}

// IRegistrar is the handler registration surface of the transport
type IRegistrar interface {
	Register(cmd common.Command, handler endpoint.HandlerFunc)
}

// --------------------------------------------------------------------------
// Remote Command Invoker
// --------------------------------------------------------------------------

// ResultFunc is the one-shot continuation invoked with the response envelope
// of a remote command
type ResultFunc func(result common.Envelope)

// Invoker issues remote commands to devices and correlates the asynchronous
// responses back to their callers. Every invocation allocates a message id,
// tracks its continuation and embeds the id in the payload so the response
// handler can resolve it, independent of the frame ids the transport assigns.
type Invoker struct {
	serializer serializer.ISerializer
	transport  ITransport
	pending    *endpoint.PendingTable
}

// NewInvoker creates an invoker whose commands wait indefinitely for their
// response
func NewInvoker(ser serializer.ISerializer, transport ITransport) *Invoker {
	return NewInvokerTTL(ser, transport, 0)
}

// NewInvokerTTL creates an invoker that abandons commands unanswered within
// ttl. A ttl of zero disables the timeout.
func NewInvokerTTL(ser serializer.ISerializer, transport ITransport, ttl time.Duration) *Invoker {
	return &Invoker{
		serializer: ser,
		transport:  transport,
		pending:    endpoint.NewPendingTableTTL(ttl),
	}
}

// Attach installs the response handler on the transport's dispatch table
func (i *Invoker) Attach(reg IRegistrar) {
	reg.Register(common.CmdCmdResult, i.onResult)
}

// Pending returns the number of commands still awaiting their response
func (i *Invoker) Pending() int {
	return i.pending.Len()
}

// --------------------------------------------------------------------------
// Invocation
// --------------------------------------------------------------------------

// Invoke sends the command to a device and registers cb to run once with the
// response. The continuation is tracked before the frame is written so the
// response cannot race the registration; a failed send untracks it again.
// It returns the correlation id assigned to the command.
func (i *Invoker) Invoke(deviceID, code string, params []byte, cb ResultFunc) (uint32, error) {
	id := i.transport.NextID()

	payload, err := i.serializer.Serialize(*common.NewCommandEnvelope(id, deviceID, code, params))
	if err != nil {
		return 0, err
	}

	i.pending.Track(id, func(response []byte) {
		var env common.Envelope
		if derr := i.serializer.Deserialize(response, &env); derr != nil {
			Logger.Errorf("malformed response for command %d: %v", id, derr)
			return
		}
		if cb != nil {
			cb(env)
		}
	})

	if err := i.transport.SendWithID(common.CmdCommand, id, payload); err != nil {
		i.pending.Abandon(id)
		return 0, err
	}

	Logger.Debugf("command %s sent to %s (id: %d)", code, deviceID, id)
	return id, nil
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// onResult resolves the pending command named by the correlation id inside
// the response payload
func (i *Invoker) onResult(ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := i.serializer.Deserialize(msg.Payload, &env); err != nil {
		Logger.Errorf("malformed command response from %s: %v", ep.RemoteAddr(), err)
		return
	}

	if !i.pending.Resolve(env.RequestID, msg.Payload) {
		Logger.Warningf("response for unknown command %d from %s, dropping", env.RequestID, ep.RemoteAddr())
	}
}
