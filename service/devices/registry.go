package devices

import (
	"sort"
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("service/devices")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IRegistrar is the handler registration surface of the transport. Both the
// client connector and the hub server satisfy it.
type IRegistrar interface {
	Register(cmd common.Command, handler endpoint.HandlerFunc)
}

// --------------------------------------------------------------------------
// Device Registry
// --------------------------------------------------------------------------

// Device is one registry entry, created by a connect announcement and kept
// current by status updates until the disconnect announcement removes it
type Device struct {
	ID          string
	Status      string
	Metadata    map[string]string
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry tracks the devices announced over the link. It consumes the
// connect, disconnect and status commands and acknowledges every connect
// announcement back to its sender.
type Registry struct {
	serializer serializer.ISerializer
	devices    *xsync.MapOf[string, Device]
}

// NewRegistry creates an empty device registry
func NewRegistry(ser serializer.ISerializer) *Registry {
	return &Registry{
		serializer: ser,
		devices:    xsync.NewMapOf[string, Device](),
	}
}

// Attach installs the registry's handlers on the transport's dispatch table
func (r *Registry) Attach(reg IRegistrar) {
	reg.Register(common.CmdConnect, r.onConnect)
	reg.Register(common.CmdDisconnect, r.onDisconnect)
	reg.Register(common.CmdStatus, r.onStatus)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Get returns the registry entry for a device id
func (r *Registry) Get(id string) (Device, bool) {
	return r.devices.Load(id)
}

// List returns all registered devices, ordered by id
func (r *Registry) List() []Device {
	list := make([]Device, 0, r.devices.Size())
	r.devices.Range(func(_ string, dev Device) bool {
		list = append(list, dev)
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// DeviceIDs returns the ids of all registered devices, ordered
func (r *Registry) DeviceIDs() []string {
	ids := make([]string, 0, r.devices.Size())
	r.devices.Range(func(id string, _ Device) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered devices
func (r *Registry) Count() int {
	return r.devices.Size()
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// onConnect registers the announced device and acknowledges the announcement
// on the same connection
func (r *Registry) onConnect(ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := r.serializer.Deserialize(msg.Payload, &env); err != nil {
		Logger.Errorf("malformed connect payload from %s: %v", ep.RemoteAddr(), err)
		return
	}

	if env.DeviceID == "" {
		Logger.Warningf("connect announcement without device id from %s", ep.RemoteAddr())
		r.ack(ep, "", false, "missing device id")
		return
	}

	status := env.Status
	if status == "" {
		status = "online"
	}

	now := time.Now()
	dev := Device{
		ID:          env.DeviceID,
		Status:      status,
		Metadata:    env.Metadata,
		ConnectedAt: now,
		LastSeen:    now,
	}
	if prev, ok := r.devices.Load(env.DeviceID); ok {
		// Reconnect keeps the original registration time
		dev.ConnectedAt = prev.ConnectedAt
	}
	r.devices.Store(env.DeviceID, dev)

	Logger.Infof("device %s registered (status: %s)", env.DeviceID, status)
	r.ack(ep, env.DeviceID, true, "")
}

// onDisconnect removes the device from the registry
func (r *Registry) onDisconnect(ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := r.serializer.Deserialize(msg.Payload, &env); err != nil {
		Logger.Errorf("malformed disconnect payload from %s: %v", ep.RemoteAddr(), err)
		return
	}

	if _, ok := r.devices.LoadAndDelete(env.DeviceID); ok {
		Logger.Infof("device %s deregistered", env.DeviceID)
	} else {
		Logger.Warningf("disconnect for unknown device %s", env.DeviceID)
	}
}

// onStatus updates the status of a registered device. A status for a device
// that never announced itself is ignored.
func (r *Registry) onStatus(ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := r.serializer.Deserialize(msg.Payload, &env); err != nil {
		Logger.Errorf("malformed status payload from %s: %v", ep.RemoteAddr(), err)
		return
	}

	dev, ok := r.devices.Load(env.DeviceID)
	if !ok {
		Logger.Warningf("status update for unknown device %s, ignoring", env.DeviceID)
		return
	}

	dev.Status = env.Status
	dev.LastSeen = time.Now()
	r.devices.Store(env.DeviceID, dev)
	Logger.Debugf("device %s status: %s", env.DeviceID, env.Status)
}

// ack replies to a connect announcement on the connection it arrived on
func (r *Registry) ack(ep *endpoint.Endpoint, deviceID string, ok bool, msg string) {
	payload, err := r.serializer.Serialize(*common.NewConnectAckEnvelope(deviceID, ok, msg))
	if err != nil {
		Logger.Errorf("failed to serialize connect ack for %s: %v", deviceID, err)
		return
	}
	if _, err := ep.Send(common.CmdConnectAck, payload); err != nil {
		Logger.Errorf("failed to send connect ack to %s: %v", ep.RemoteAddr(), err)
	}
}
