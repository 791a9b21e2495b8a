package server

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/wire"
)

// --------------------------------------------------------------------------
// In-memory transport for deterministic tests
// --------------------------------------------------------------------------

// fakeAddr gives every pipe connection a distinct peer address
type fakeAddr string

func (a fakeAddr) Network() string { return "pipe" }
func (a fakeAddr) String() string  { return string(a) }

// addrConn overrides the peer address of a pipe connection
type addrConn struct {
	net.Conn
	addr fakeAddr
}

func (c addrConn) RemoteAddr() net.Addr { return c.addr }

// fakeListener hands accepted pipe connections to the server
type fakeListener struct {
	conns  chan net.Conn
	done   chan struct{}
	failed bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		conns: make(chan net.Conn, 16),
		done:  make(chan struct{}),
	}
}

func (l *fakeListener) GetName() string { return "pipe" }

func (l *fakeListener) Listen(config common.ServerConfig) (net.Listener, error) {
	if l.failed {
		return nil, fmt.Errorf("address in use")
	}
	return l, nil
}

func (l *fakeListener) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

func (l *fakeListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, fmt.Errorf("listener closed")
	}
}

func (l *fakeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *fakeListener) Addr() net.Addr { return fakeAddr("hub") }

// dial connects a raw client to the fake listener and returns its half of
// the pipe
func (l *fakeListener) dial(peer string) net.Conn {
	local, remote := net.Pipe()
	l.conns <- addrConn{Conn: remote, addr: fakeAddr(peer)}
	return local
}

// brokenWriteConn refuses every write while reads still block, so the only
// way the server can notice the connection is dead is a failing write
type brokenWriteConn struct {
	net.Conn
}

func (c brokenWriteConn) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write refused")
}

// dialBroken connects a client whose server side refuses writes
func (l *fakeListener) dialBroken(peer string) net.Conn {
	local, remote := net.Pipe()
	l.conns <- addrConn{Conn: brokenWriteConn{remote}, addr: fakeAddr(peer)}
	return local
}

// raceListener hands out one final connection only after the listener has
// been closed, modelling a connection accepted concurrently with Stop
type raceListener struct {
	done chan struct{}
	late net.Conn
	once sync.Once
}

func (l *raceListener) GetName() string { return "race" }

func (l *raceListener) Listen(common.ServerConfig) (net.Listener, error) { return l, nil }

func (l *raceListener) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

func (l *raceListener) Accept() (net.Conn, error) {
	<-l.done
	var conn net.Conn
	l.once.Do(func() { conn = l.late })
	if conn != nil {
		return conn, nil
	}
	return nil, fmt.Errorf("listener closed")
}

func (l *raceListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *raceListener) Addr() net.Addr { return fakeAddr("hub") }

// testClient decodes every frame arriving on a raw connection
type testClient struct {
	conn   net.Conn
	frames chan wire.Message
}

func newTestClient(conn net.Conn) *testClient {
	c := &testClient{conn: conn, frames: make(chan wire.Message, 16)}
	go func() {
		var buf []byte
		chunk := make([]byte, 4096)
		for {
			n, err := conn.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				for {
					msg, consumed, derr := wire.Decode(buf)
					if derr != nil || consumed == 0 {
						break
					}
					msg.Payload = bytes.Clone(msg.Payload)
					c.frames <- msg
					buf = buf[consumed:]
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return c
}

func (c *testClient) expectFrame(t *testing.T) wire.Message {
	t.Helper()
	select {
	case msg := <-c.frames:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame arrived")
		return wire.Message{}
	}
}

// waitForConnections polls until the registry holds want endpoints
func waitForConnections(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for s.NumConnections() != want {
		select {
		case <-deadline:
			t.Fatalf("registry holds %d connections, expected %d", s.NumConnections(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestBindFailureIsFatal tests that a failing bind aborts startup
func TestBindFailureIsFatal(t *testing.T) {
	listener := newFakeListener()
	listener.failed = true

	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err == nil {
		t.Fatal("Start succeeded despite bind failure")
	}
}

// TestBroadcastFanOut tests that a broadcast reaches every registered
// connection with an identical payload
func TestBroadcastFanOut(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	clients := make([]*testClient, 3)
	for i := range clients {
		clients[i] = newTestClient(listener.dial(fmt.Sprintf("client-%d", i)))
	}
	waitForConnections(t, s, len(clients))

	s.Broadcast(common.CmdBroadcast, []byte("fan-out"))

	for i, client := range clients {
		msg := client.expectFrame(t)
		if msg.Cmd != common.CmdBroadcast || string(msg.Payload) != "fan-out" {
			t.Errorf("client %d received %s/%q", i, msg.Cmd, msg.Payload)
		}
	}
}

// TestBroadcastSurvivesDeadConnection tests that a connection whose peer is
// gone is evicted while the remaining connections still receive broadcasts
func TestBroadcastSurvivesDeadConnection(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	alive := newTestClient(listener.dial("alive"))
	dead := listener.dial("dead")
	waitForConnections(t, s, 2)

	dead.Close()
	waitForConnections(t, s, 1)

	s.Broadcast(common.CmdBroadcast, []byte("partial"))

	msg := alive.expectFrame(t)
	if string(msg.Payload) != "partial" {
		t.Errorf("surviving client received %q", msg.Payload)
	}
	if s.NumConnections() != 1 {
		t.Errorf("registry holds %d connections, expected 1", s.NumConnections())
	}
}

// TestBroadcastEvictsFailedWriter tests the write-failure branch of
// Broadcast: a connection whose write fails is removed from the registry,
// closed, and does not receive subsequent broadcasts
func TestBroadcastEvictsFailedWriter(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	alive := newTestClient(listener.dial("alive"))
	broken := listener.dialBroken("broken")
	waitForConnections(t, s, 2)

	// The broken connection still blocks in its read, so only the failing
	// write inside Broadcast can evict it
	s.Broadcast(common.CmdBroadcast, []byte("first"))

	if s.NumConnections() != 1 {
		t.Errorf("registry holds %d connections after failed write, expected 1", s.NumConnections())
	}

	s.Broadcast(common.CmdBroadcast, []byte("second"))

	for _, want := range []string{"first", "second"} {
		msg := alive.expectFrame(t)
		if string(msg.Payload) != want {
			t.Errorf("surviving client received %q, expected %q", msg.Payload, want)
		}
	}

	// The evicted connection gets closed, not just dropped
	buf := make([]byte, 1)
	broken.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := broken.Read(buf); err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
		t.Error("evicted connection was never closed")
	}
}

// TestTargetedSend tests that Send reaches exactly the addressed peer
func TestTargetedSend(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	first := newTestClient(listener.dial("first"))
	second := newTestClient(listener.dial("second"))
	waitForConnections(t, s, 2)

	if err := s.Send("first", common.CmdGetData, []byte("only-you")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg := first.expectFrame(t)
	if msg.Cmd != common.CmdGetData || string(msg.Payload) != "only-you" {
		t.Errorf("addressed client received %s/%q", msg.Cmd, msg.Payload)
	}

	select {
	case msg := <-second.frames:
		t.Errorf("unaddressed client received %s/%q", msg.Cmd, msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}

	if err := s.Send("absent", common.CmdGetData, nil); err == nil {
		t.Error("Send to an unregistered peer succeeded")
	}
}

// TestInboundDispatchAndReply tests the request/reply path through the
// server's dispatcher
func TestInboundDispatchAndReply(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	s.Register(common.CmdConnect, func(ep *endpoint.Endpoint, msg wire.Message) {
		ep.Send(common.CmdConnectAck, msg.Payload)
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	client := newTestClient(listener.dial("client"))
	waitForConnections(t, s, 1)

	frame := wire.Encode(common.CmdConnect, 1, []byte("hello-hub"))
	if _, err := client.conn.Write(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := client.expectFrame(t)
	if msg.Cmd != common.CmdConnectAck || string(msg.Payload) != "hello-hub" {
		t.Errorf("reply was %s/%q", msg.Cmd, msg.Payload)
	}
}

// TestStopClosesEverything tests that Stop evicts all connections, joins the
// workers and stays idempotent
func TestStopClosesEverything(t *testing.T) {
	listener := newFakeListener()
	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	conn := listener.dial("client")
	waitForConnections(t, s, 1)

	s.Stop()

	if s.NumConnections() != 0 {
		t.Errorf("registry holds %d connections after Stop", s.NumConnections())
	}

	// The client observes the close
	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(buf); err == nil {
		t.Error("client connection still open after Stop")
	}

	// Idempotent
	s.Stop()
}

// TestLateAcceptClosedOnStop tests that a connection accepted while Stop is
// running is still closed and leaves no registry entry behind
func TestLateAcceptClosedOnStop(t *testing.T) {
	local, remote := net.Pipe()
	listener := &raceListener{
		done: make(chan struct{}),
		late: addrConn{Conn: remote, addr: fakeAddr("late")},
	}

	s := NewServerWith(common.ServerConfig{Endpoint: "hub"}, listener)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Stop's eviction sweep runs before the late connection is registered
	s.Stop()

	if s.NumConnections() != 0 {
		t.Errorf("registry holds %d connections after Stop", s.NumConnections())
	}

	buf := make([]byte, 1)
	local.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := local.Read(buf); err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
		t.Error("connection accepted during Stop was never closed")
	}
}
