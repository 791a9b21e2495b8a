package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("service/telemetry")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// ISender is the sending surface of the transport the poll loop uses. Both
// the client connector and a single endpoint satisfy it.
type ISender interface {
	Send(cmd common.Command, payload []byte) (uint32, error)
}

// IDeviceLister yields the device ids the poll loop asks for readings.
// The device registry satisfies it.
type IDeviceLister interface {
	DeviceIDs() []string
}

// IRegistrar is the handler registration surface of the transport
type IRegistrar interface {
	Register(cmd common.Command, handler endpoint.HandlerFunc)
}

// --------------------------------------------------------------------------
// Telemetry Collector
// --------------------------------------------------------------------------

// Reading is one telemetry sample of a device
type Reading struct {
	Timestamp int64 // unix nanoseconds
	Value     []byte
}

// series is the append-only sample list of one device
type series struct {
	mu       sync.Mutex
	readings []Reading
}

// Collector stores inbound telemetry readings per device and optionally runs
// a poll loop that requests fresh readings from every known device at a
// fixed interval.
type Collector struct {
	serializer serializer.ISerializer
	lister     IDeviceLister
	sender     ISender
	interval   time.Duration

	series *xsync.MapOf[string, *series]

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewCollector creates a telemetry collector. The lister and sender drive
// the poll loop; passing nil for either disables polling, inbound readings
// are still collected.
func NewCollector(ser serializer.ISerializer, lister IDeviceLister, sender ISender, interval time.Duration) *Collector {
	return &Collector{
		serializer: ser,
		lister:     lister,
		sender:     sender,
		interval:   interval,
		series:     xsync.NewMapOf[string, *series](),
	}
}

// Attach installs the collector's handlers on the transport's dispatch
// table. Readings are accepted both directly from a device and as a hub
// fan-out.
func (c *Collector) Attach(reg IRegistrar) {
	reg.Register(common.CmdTelemetry, c.onTelemetry)
	reg.Register(common.CmdBroadcast, c.onTelemetry)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Recent returns up to limit of the most recent readings of a device, newest
// first. A limit <= 0 yields no readings.
func (c *Collector) Recent(deviceID string, limit int) []Reading {
	if limit <= 0 {
		return nil
	}
	s, ok := c.series.Load(deviceID)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.readings)
	if limit < n {
		n = limit
	}
	out := make([]Reading, n)
	for i := 0; i < n; i++ {
		out[i] = s.readings[len(s.readings)-1-i]
	}
	return out
}

// Len returns the number of stored readings of a device
func (c *Collector) Len(deviceID string) int {
	s, ok := c.series.Load(deviceID)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

// --------------------------------------------------------------------------
// Poll Loop
// --------------------------------------------------------------------------

// Start runs the poll loop on its own goroutine. It is idempotent while the
// loop is running.
func (c *Collector) Start() error {
	if c.lister == nil || c.sender == nil {
		return fmt.Errorf("polling requires a device lister and a sender")
	}
	if c.interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", c.interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return nil // already running
	}
	c.stop = make(chan struct{})

	Logger.Infof("starting telemetry poll loop (interval: %s)", c.interval)

	c.wg.Add(1)
	go c.pollLoop(c.stop)
	return nil
}

// Stop terminates the poll loop and waits for it to exit. It is idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	c.wg.Wait()
	Logger.Infof("telemetry poll loop stopped")
}

// pollLoop requests a fresh reading from every known device once per tick
func (c *Collector) pollLoop(stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

// pollOnce sends one data request per known device
func (c *Collector) pollOnce() {
	for _, id := range c.lister.DeviceIDs() {
		payload, err := c.serializer.Serialize(*common.NewGetDataEnvelope(id))
		if err != nil {
			Logger.Errorf("failed to serialize data request for %s: %v", id, err)
			continue
		}
		if _, err := c.sender.Send(common.CmdGetData, payload); err != nil {
			Logger.Errorf("failed to request data from %s: %v", id, err)
		}
	}
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// onTelemetry appends an inbound reading to the series of its device
func (c *Collector) onTelemetry(ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := c.serializer.Deserialize(msg.Payload, &env); err != nil {
		Logger.Errorf("malformed telemetry payload from %s: %v", ep.RemoteAddr(), err)
		return
	}
	if env.DeviceID == "" {
		Logger.Warningf("telemetry reading without device id from %s, dropping", ep.RemoteAddr())
		return
	}

	timestamp := env.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixNano()
	}

	s, _ := c.series.LoadOrCompute(env.DeviceID, func() *series { return &series{} })
	s.mu.Lock()
	s.readings = append(s.readings, Reading{Timestamp: timestamp, Value: env.Value})
	s.mu.Unlock()

	Logger.Debugf("reading from %s stored (%d bytes)", env.DeviceID, len(env.Value))
}
