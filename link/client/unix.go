package client

import (
	"net"

	"github.com/hakehuang/devlink/link/common"
)

// unixConnector implements the IConnector interface for Unix domain sockets
type unixConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IConnector)
// --------------------------------------------------------------------------

func (c *unixConnector) GetName() string {
	return "unix"
}

func (c *unixConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}

// UpgradeConnection applies the socket buffer sizes from the client
// configuration. The TCP specific knobs do not apply here.
func (c *unixConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil // Not a Unix socket, nothing to upgrade
	}

	// Set socket write buffer size if configured
	if config.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if config.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Connector Factory Method
// --------------------------------------------------------------------------

// NewUnixConnector creates a connector for the Unix domain socket transport.
// The configured endpoint is the socket path.
func NewUnixConnector(config common.ClientConfig) *Connector {
	return NewConnectorWith(config, &unixConnector{})
}
