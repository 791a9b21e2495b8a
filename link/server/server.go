package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("link/server")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IListener defines the interface for transport-specific server operations
type IListener interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Server Registry
// -----------------------------------------------------------

// Server runs the accept loop of the hub and the registry of connected
// endpoints, keyed by peer address. Entries are created on accept and
// removed on disconnect or I/O failure; the failure of one connection never
// affects the others.
type Server struct {
	config     common.ServerConfig
	connector  IListener
	dispatcher *endpoint.Dispatcher

	listener net.Listener
	conns    *xsync.MapOf[string, *endpoint.Endpoint]
	nextID   atomic.Uint32 // message id counter for broadcast frames

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping atomic.Bool
}

// NewServer creates a hub server for the TCP transport
func NewServer(config common.ServerConfig) *Server {
	return NewServerWith(config, &tcpListener{})
}

// NewServerWith creates a hub server with the specified transport listener
func NewServerWith(config common.ServerConfig, connector IListener) *Server {
	s := &Server{
		config:     config,
		connector:  connector,
		dispatcher: endpoint.NewDispatcher(),
		conns:      xsync.NewMapOf[string, *endpoint.Endpoint](),
	}
	s.nextID.Store(1) // Start from 1
	return s
}

// Register installs the handler for a command code on the server's dispatch
// table, shared by all endpoints (last registration wins)
func (s *Server) Register(cmd common.Command, handler endpoint.HandlerFunc) {
	s.dispatcher.Register(cmd, handler)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start binds the listening socket and runs the accept loop on its own
// goroutine. A bind failure is fatal to startup and returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already started on %s", s.listener.Addr())
	}

	listener, err := s.connector.Listen(s.config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	s.listener = listener
	s.stopping.Store(false)

	Logger.Infof("starting %s server on %s", s.connector.GetName(), listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Stop closes the listening socket, closes every registered connection and
// waits for all worker loops to exit. It is idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener == nil {
		return
	}

	s.stopping.Store(true)
	listener.Close()

	s.conns.Range(func(peer string, ep *endpoint.Endpoint) bool {
		ep.Close()
		return true
	})

	s.wg.Wait()
	Logger.Infof("server stopped")
}

// Addr returns the bound listener address, or the configured endpoint while
// not started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Endpoint
}

// NumConnections returns the number of currently registered endpoints
func (s *Server) NumConnections() int {
	return s.conns.Size()
}

// Peers returns the peer addresses of all registered endpoints
func (s *Server) Peers() []string {
	peers := make([]string, 0, s.conns.Size())
	s.conns.Range(func(peer string, _ *endpoint.Endpoint) bool {
		peers = append(peers, peer)
		return true
	})
	return peers
}

// --------------------------------------------------------------------------
// Accept Loop
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed. Every
// accepted socket becomes an endpoint whose receive loop runs on its own
// goroutine.
func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			Logger.Errorf("accept error: %v", err)
			continue
		}

		if err := s.connector.UpgradeConnection(conn, s.config); err != nil {
			Logger.Errorf("failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		ep := endpoint.New(conn, s.dispatcher, s.onEndpointClosed)
		s.conns.Store(ep.RemoteAddr(), ep)
		common.ActiveConnections.Inc()
		Logger.Infof("new client connected: %s", ep.RemoteAddr())

		ep.Start()

		// Stop may have finished its eviction sweep between the accept and
		// the Store above; this endpoint is then ours to close
		if s.stopping.Load() {
			ep.Close()
		}
	}
}

// onEndpointClosed evicts an endpoint from the registry once its receive
// loop has exited
func (s *Server) onEndpointClosed(ep *endpoint.Endpoint, err error) {
	if _, ok := s.conns.LoadAndDelete(ep.RemoteAddr()); ok {
		common.ActiveConnections.Dec()
	}
	if err != nil {
		Logger.Warningf("client %s removed: %v", ep.RemoteAddr(), err)
	} else {
		Logger.Infof("client disconnected: %s", ep.RemoteAddr())
	}
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send targets one registered connection by peer address
func (s *Server) Send(peer string, cmd common.Command, payload []byte) error {
	ep, ok := s.conns.Load(peer)
	if !ok {
		return fmt.Errorf("no connection registered for peer %s", peer)
	}
	_, err := ep.Send(cmd, payload)
	return err
}

// Broadcast encodes the frame once and writes it to every currently
// registered connection. A connection whose write fails is removed from the
// registry and closed; the loop continues for the remaining connections.
func (s *Server) Broadcast(cmd common.Command, payload []byte) {
	frame := wire.Encode(cmd, s.nextID.Add(1), payload)

	s.conns.Range(func(peer string, ep *endpoint.Endpoint) bool {
		if err := ep.SendFrame(frame); err != nil {
			Logger.Errorf("broadcast to %s failed: %v", peer, err)
			common.BroadcastErrors.Inc()

			if _, ok := s.conns.LoadAndDelete(peer); ok {
				common.ActiveConnections.Dec()
			}
			// Close asynchronously: Broadcast may run on a receive loop and
			// Close waits for the loop to exit
			go ep.Close()
		}
		return true
	})
}
