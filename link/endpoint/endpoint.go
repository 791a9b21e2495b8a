package endpoint

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("link/endpoint")

const (
	// readChunkSize is the size of a single read from the socket
	readChunkSize = 4096
)

// CloseHook is invoked exactly once when the endpoint's receive loop has
// exited, with the error that terminated it (nil for an orderly shutdown).
// It is used by the server registry to evict the endpoint and by the client
// connector to track connection state.
type CloseHook func(ep *Endpoint, err error)

// --------------------------------------------------------------------------
// Connection Endpoint
// --------------------------------------------------------------------------

// Endpoint owns one socket and the dedicated receive loop that drains it.
// All decoding and handler dispatch happen synchronously inside that loop.
// Send and SendFrame may be called concurrently from any goroutine; each
// whole frame is written under a mutex so frames never interleave.
type Endpoint struct {
	conn       net.Conn
	peer       string
	dispatcher *Dispatcher
	onClose    CloseHook

	writeMu sync.Mutex
	nextID  atomic.Uint32

	closeOnce sync.Once
	hookOnce  sync.Once
	running   atomic.Bool
	done      chan struct{} // closed when the receive loop has exited
}

// New creates an endpoint around an established connection. The receive loop
// is not started; the owner starts it with Start (or runs Run directly). The
// onClose hook may be nil.
func New(conn net.Conn, dispatcher *Dispatcher, onClose CloseHook) *Endpoint {
	ep := &Endpoint{
		conn:       conn,
		peer:       conn.RemoteAddr().String(),
		dispatcher: dispatcher,
		onClose:    onClose,
		done:       make(chan struct{}),
	}
	ep.nextID.Store(1) // Start from 1
	return ep
}

// RemoteAddr returns the peer address of the underlying connection
func (e *Endpoint) RemoteAddr() string {
	return e.peer
}

// NextID returns the next message id of this endpoint. Ids are monotonic per
// endpoint and wrap at 2^32.
func (e *Endpoint) NextID() uint32 {
	return e.nextID.Add(1)
}

// Start launches the receive loop on its own goroutine. The running flag is
// set before the goroutine spawns, so Close joins the loop from the moment
// Start returns.
func (e *Endpoint) Start() {
	e.running.Store(true)
	go e.Run()
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send encodes one frame with the endpoint's next message id and writes it.
// It returns the id assigned to the frame.
func (e *Endpoint) Send(cmd common.Command, payload []byte) (uint32, error) {
	id := e.NextID()
	return id, e.SendFrame(wire.Encode(cmd, id, payload))
}

// SendWithID encodes one frame with a caller supplied message id and writes
// it. Used when the id was allocated up front, e.g. for correlated commands
// that must be tracked before the frame leaves the process.
func (e *Endpoint) SendWithID(cmd common.Command, id uint32, payload []byte) error {
	return e.SendFrame(wire.Encode(cmd, id, payload))
}

// SendFrame writes a pre-encoded frame as one atomic unit. Broadcast uses
// this to encode once and write to many endpoints.
func (e *Endpoint) SendFrame(frame []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, err := e.conn.Write(frame); err != nil {
		return err
	}
	common.FramesSent.Inc()
	return nil
}

// --------------------------------------------------------------------------
// Receive Loop
// --------------------------------------------------------------------------

// Run executes the receive loop until the connection fails, a corrupt frame
// is detected or Close is called. It must be invoked exactly once, normally
// on its own goroutine.
func (e *Endpoint) Run() {
	e.running.Store(true)
	defer close(e.done)

	var buf []byte
	chunk := make([]byte, readChunkSize)

	for {
		n, err := e.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			// Extract every complete frame from the accumulation buffer
			for {
				msg, consumed, derr := wire.Decode(buf)
				if derr != nil {
					// No resynchronization strategy: the stream is
					// unrecoverable, tear the connection down
					Logger.Errorf("corrupt frame from %s: %v", e.peer, derr)
					common.FramesCorrupt.Inc()
					e.closeConn()
					e.fireHook(derr)
					return
				}
				if consumed == 0 {
					break // incomplete, read more
				}

				e.dispatch(msg)

				// Shift the consumed frame out of the buffer. Safe only
				// after dispatch returned since the payload aliases buf.
				buf = append(buf[:0], buf[consumed:]...)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				Logger.Infof("connection closed by peer %s", e.peer)
				e.closeConn()
				e.fireHook(nil)
			} else {
				e.closeConn()
				e.fireHook(err)
			}
			return
		}
	}
}

// dispatch routes one decoded message to its registered handler. A handler
// failure is contained here so one bad message cannot kill the loop.
func (e *Endpoint) dispatch(msg wire.Message) {
	common.FramesReceived.Inc()

	handler, ok := e.dispatcher.lookup(msg.Cmd)
	if !ok {
		Logger.Warningf("no handler registered for command %s, dropping frame %d from %s",
			msg.Cmd, msg.ID, e.peer)
		common.FramesDropped.Inc()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("handler for command %s panicked on frame %d from %s: %v",
				msg.Cmd, msg.ID, e.peer, r)
			common.HandlerPanics.Inc()
		}
	}()
	handler(e, msg)
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// Close closes the socket, which unblocks the pending read, and waits for
// the receive loop to exit. It is idempotent and safe to call from any
// goroutine except a handler running on this endpoint.
func (e *Endpoint) Close() error {
	err := e.closeConn()
	if e.running.Load() {
		<-e.done
	}
	return err
}

// closeConn closes the underlying socket exactly once
func (e *Endpoint) closeConn() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.conn.Close()
	})
	return err
}

// fireHook invokes the close hook exactly once
func (e *Endpoint) fireHook(cause error) {
	e.hookOnce.Do(func() {
		if e.onClose != nil {
			e.onClose(e, cause)
		}
	})
}
