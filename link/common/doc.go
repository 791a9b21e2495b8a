// Package common provides the core data structures and utilities shared by
// every layer of the device messaging framework.
//
// The package focuses on:
//   - The two byte Command vocabulary carried in frame headers
//   - The Envelope payload structure with factory functions for every
//     command the bundled services speak
//   - Configuration structures for the hub server and for connectors
//   - Logging setup and transport metrics
//
// Key Components:
//
//   - Command: fixed-width command code selecting which handler processes
//     a message. The transport is agnostic to its meaning.
//
//   - Envelope: a single payload structure used for both requests and
//     responses of the device services. Which fields are used depends on
//     the command the envelope travels under.
//
//   - ServerConfig/ClientConfig: configuration with socket tuning knobs
//     and pretty-printed String() representations.
package common
