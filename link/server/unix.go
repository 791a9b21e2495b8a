package server

import (
	"fmt"
	"net"
	"os"

	"github.com/hakehuang/devlink/link/common"
)

// unixListener implements the IListener interface for Unix domain sockets
type unixListener struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IListener)
// --------------------------------------------------------------------------

func (l *unixListener) GetName() string {
	return "unix"
}

func (l *unixListener) Listen(config common.ServerConfig) (net.Listener, error) {
	socketPath := config.Endpoint

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	// Create Unix socket listener
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %v", err)
	}

	return listener, nil
}

// UpgradeConnection applies the socket buffer sizes from the server
// configuration. The TCP specific knobs do not apply here.
func (l *unixListener) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
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
// Server Factory Method
// --------------------------------------------------------------------------

// NewUnixServer creates a hub server for the Unix domain socket transport.
// The configured endpoint is the socket path.
func NewUnixServer(config common.ServerConfig) *Server {
	return NewServerWith(config, &unixListener{})
}
