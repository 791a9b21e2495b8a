// Package cmd implements the command-line interface for the devlink device
// messaging framework. It provides a hierarchical command structure with
// operations for running the relay hub and for acting as a device or a
// monitor against it.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the relay hub
//   - agent: Commands for running a simulated device agent
//   - monitor: Commands for observing and controlling devices (watch, invoke)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See devlink -help for a list of all commands.
package cmd
