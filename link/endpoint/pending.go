package endpoint

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Pending Command Table (request/response correlation)
// --------------------------------------------------------------------------

// Callback is the one-shot continuation invoked with the payload of the
// response that carries the tracked id.
type Callback func(payload []byte)

// pendingEntry couples a callback with its optional eviction timer
type pendingEntry struct {
	cb    Callback
	timer *time.Timer
}

// PendingTable maps an outgoing message id to a one-shot continuation,
// layering an RPC pattern on top of the asynchronous transport. The caller
// tracks the id immediately before the correlated send; the response handler
// resolves it when a frame whose payload embeds the same id arrives.
type PendingTable struct {
	entries *xsync.MapOf[uint32, pendingEntry]
	ttl     time.Duration
}

// NewPendingTable creates a table without eviction: an unanswered command
// keeps its entry until it is resolved or abandoned explicitly.
func NewPendingTable() *PendingTable {
	return NewPendingTableTTL(0)
}

// NewPendingTableTTL creates a table that abandons entries which have not
// been resolved within ttl. A ttl of zero disables eviction (the default
// behaviour of the protocol).
func NewPendingTableTTL(ttl time.Duration) *PendingTable {
	return &PendingTable{
		entries: xsync.NewMapOf[uint32, pendingEntry](),
		ttl:     ttl,
	}
}

// Track registers the continuation for a message id. It must be called
// before the correlated frame is sent so the response cannot race the
// registration.
func (p *PendingTable) Track(id uint32, cb Callback) {
	entry := pendingEntry{cb: cb}
	if p.ttl > 0 {
		entry.timer = time.AfterFunc(p.ttl, func() {
			if p.Abandon(id) {
				Logger.Warningf("pending command %d abandoned after %s", id, p.ttl)
			}
		})
	}
	p.entries.Store(id, entry)
}

// Resolve removes the entry for id and invokes its continuation with the
// response payload. Removal and invocation are atomic with respect to
// concurrent Resolve and Abandon calls, so the continuation runs at most
// once. It returns false if no entry was tracked for the id.
func (p *PendingTable) Resolve(id uint32, payload []byte) bool {
	entry, ok := p.entries.LoadAndDelete(id)
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	if entry.cb != nil {
		entry.cb(payload)
	}
	return true
}

// Abandon removes the entry for id without invoking the continuation.
// It returns false if no entry was tracked for the id.
func (p *PendingTable) Abandon(id uint32) bool {
	entry, ok := p.entries.LoadAndDelete(id)
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return true
}

// Len returns the number of commands currently awaiting a response
func (p *PendingTable) Len() int {
	return p.entries.Size()
}
