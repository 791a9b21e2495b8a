// Package telemetry implements the telemetry collection service: an
// in-memory, per-device series of readings fed by inbound telemetry frames,
// plus an optional poll loop that requests fresh readings from every device
// known to the registry at a fixed interval.
package telemetry
