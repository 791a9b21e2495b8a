package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("link/client")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the interface for transport-specific connection operations
type IConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Connection State
// -----------------------------------------------------------

// State describes where a connector is in its lifecycle:
// Disconnected -> Connecting -> Connected -> Disconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------
// Client Connector
// -----------------------------------------------------------

// Connector wraps one connection endpoint with bounded-retry connect and
// idempotent disconnect. Handlers are registered on the connector's
// dispatcher and survive reconnects.
type Connector struct {
	config     common.ClientConfig
	connector  IConnector
	dispatcher *endpoint.Dispatcher

	mu    sync.Mutex
	ep    *endpoint.Endpoint
	state atomic.Int32
}

// NewConnector creates a connector for the TCP transport
func NewConnector(config common.ClientConfig) *Connector {
	return NewConnectorWith(config, &tcpConnector{})
}

// NewConnectorWith creates a connector with the specified transport connector
func NewConnectorWith(config common.ClientConfig, connector IConnector) *Connector {
	return &Connector{
		config:     config,
		connector:  connector,
		dispatcher: endpoint.NewDispatcher(),
	}
}

// Register installs the handler for a command code on the connector's
// dispatch table (last registration wins)
func (c *Connector) Register(cmd common.Command, handler endpoint.HandlerFunc) {
	c.dispatcher.Register(cmd, handler)
}

// State returns the current lifecycle state
func (c *Connector) State() State {
	return State(c.state.Load())
}

// Endpoint returns the active endpoint, or nil while disconnected
func (c *Connector) Endpoint() *endpoint.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep
}

// --------------------------------------------------------------------------
// Connect / Disconnect
// --------------------------------------------------------------------------

// Connect attempts to open the connection up to MaxRetries times with a
// fixed delay between attempts (deliberately no exponential backoff). On
// success the endpoint's receive loop is started. After the retry budget is
// exhausted the last dial error is returned and no further action happens;
// retry-beyond-the-budget policy is left to the caller.
func (c *Connector) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep != nil {
		return nil // already connected
	}

	maxRetries := c.config.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	c.state.Store(int32(StateConnecting))

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := c.connector.Connect(c.config.Endpoint)
		if err == nil {
			if err := c.connector.UpgradeConnection(conn, c.config); err != nil {
				conn.Close()
				c.state.Store(int32(StateDisconnected))
				return fmt.Errorf("failed to upgrade connection to %s: %v", c.config.Endpoint, err)
			}

			ep := endpoint.New(conn, c.dispatcher, c.onEndpointClosed)
			c.ep = ep
			c.state.Store(int32(StateConnected))
			ep.Start()

			Logger.Infof("connected to %s using %s transport (attempt %d/%d)",
				c.config.Endpoint, c.connector.GetName(), attempt, maxRetries)
			return nil
		}

		lastErr = err
		Logger.Warningf("connection attempt %d/%d to %s failed: %v",
			attempt, maxRetries, c.config.Endpoint, err)

		if attempt < maxRetries {
			time.Sleep(c.config.RetryDelay)
		}
	}

	c.state.Store(int32(StateDisconnected))
	return fmt.Errorf("failed to connect to %s after %d attempts: %v",
		c.config.Endpoint, maxRetries, lastErr)
}

// Disconnect tears the endpoint down and marks the connector as not
// connected. It is idempotent.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	ep := c.ep
	c.ep = nil
	c.mu.Unlock()

	if ep == nil {
		return
	}

	// Close outside the lock: it waits for the receive loop, and the loop's
	// close hook takes the lock
	ep.Close()
	c.state.Store(int32(StateDisconnected))
	Logger.Infof("disconnected from %s", c.config.Endpoint)
}

// onEndpointClosed marks the connector disconnected when the receive loop
// exits on its own (peer close, I/O error, corrupt frame)
func (c *Connector) onEndpointClosed(ep *endpoint.Endpoint, err error) {
	c.mu.Lock()
	if c.ep == ep {
		c.ep = nil
		c.state.Store(int32(StateDisconnected))
	}
	c.mu.Unlock()

	if err != nil {
		Logger.Warningf("connection to %s lost: %v", c.config.Endpoint, err)
	}
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send encodes one frame with the endpoint's next message id and writes it
func (c *Connector) Send(cmd common.Command, payload []byte) (uint32, error) {
	ep := c.Endpoint()
	if ep == nil {
		return 0, fmt.Errorf("not connected to %s", c.config.Endpoint)
	}
	return ep.Send(cmd, payload)
}

// SendWithID encodes one frame with a caller supplied message id, used for
// correlated commands tracked before sending
func (c *Connector) SendWithID(cmd common.Command, id uint32, payload []byte) error {
	ep := c.Endpoint()
	if ep == nil {
		return fmt.Errorf("not connected to %s", c.config.Endpoint)
	}
	return ep.SendWithID(cmd, id, payload)
}
