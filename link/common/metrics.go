package common

import (
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Transport Metrics
// --------------------------------------------------------------------------

// Counters and gauges shared by the transport packages. All of them are
// registered in the default metrics set and can be exposed with
// metrics.WritePrometheus.
var (
	// FramesSent counts every frame successfully written to a socket
	FramesSent = metrics.NewCounter("devlink_frames_sent_total")

	// FramesReceived counts every frame successfully decoded and dispatched
	FramesReceived = metrics.NewCounter("devlink_frames_received_total")

	// FramesDropped counts frames dropped because no handler was registered
	FramesDropped = metrics.NewCounter("devlink_frames_dropped_total")

	// FramesCorrupt counts frames rejected by the codec (bad length or checksum)
	FramesCorrupt = metrics.NewCounter("devlink_frames_corrupt_total")

	// HandlerPanics counts handler invocations that panicked and were recovered
	HandlerPanics = metrics.NewCounter("devlink_handler_panics_total")

	// ActiveConnections tracks the number of endpoints currently registered
	// on the server
	ActiveConnections = metrics.NewCounter("devlink_active_connections")

	// BroadcastErrors counts connections evicted during a broadcast because
	// their write failed
	BroadcastErrors = metrics.NewCounter("devlink_broadcast_errors_total")
)
