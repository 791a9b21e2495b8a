package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the hub server.
type ServerConfig struct {
	// The address the server listens on (e.g. "0.0.0.0:9999")
	Endpoint string

	// Socket tuning
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	ReadBufferSize  int
	WriteBufferSize int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Hub Server")
	addField("Endpoint", c.Endpoint)

	addSection("Socket Tuning")
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
	addField("Read Buffer Size", strconv.Itoa(c.ReadBufferSize))
	addField("Write Buffer Size", strconv.Itoa(c.WriteBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for a connector.
type ClientConfig struct {
	// The address of the hub server (e.g. "localhost:9999")
	Endpoint string

	// Connection retry behaviour. The delay between attempts is fixed,
	// not an exponential backoff.
	MaxRetries int
	RetryDelay time.Duration

	// Socket tuning
	TCPNoDelay      bool
	TCPKeepAliveSec int
	ReadBufferSize  int
	WriteBufferSize int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Max Retries", strconv.Itoa(c.MaxRetries))
	addField("Retry Delay", c.RetryDelay.String())

	addSection("Socket Tuning")
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Read Buffer Size", strconv.Itoa(c.ReadBufferSize))
	addField("Write Buffer Size", strconv.Itoa(c.WriteBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
