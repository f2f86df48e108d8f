// Package netsignals provides an ordered observer registry for network level
// events. Components interested in fully assembled wire messages, protocol
// configuration announcements, or protocol violations register an Observer
// and are notified synchronously, in registration order, by the connection
// that produced the event.
package netsignals

import (
	"sync"

	"github.com/mvc-labs/mvcd/wire"
)

// Observer receives network events. All methods are invoked synchronously
// from the goroutine that produced the event, so implementations must not
// block; anything expensive belongs on the observer's own queue.
type Observer interface {
	// OnMessageAssembled is invoked once a complete message has been
	// assembled from the peer's byte stream. The assembler is complete and
	// read-only at this point.
	OnMessageAssembled(peerID int32, msg *wire.NetMessage)

	// OnProtoconfReceived is invoked when a peer announces its protocol
	// configuration.
	OnProtoconfReceived(peerID int32, protoconf *wire.MsgProtoconf)

	// OnProtocolViolation is invoked when a peer breaks a framing or
	// negotiation rule. Most violations cost the peer its connection,
	// minor ones only cost it ban score.
	OnProtocolViolation(peerID int32, err error)
}

// Registry fans events out to registered observers. Notifications run in
// registration order on the caller's goroutine. Registration and removal are
// safe against concurrent notification; observers added or removed while a
// notification is in flight take effect from the next notification on.
type Registry struct {
	mtx       sync.RWMutex
	observers []Observer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends the observer to the notification order. Registering the
// same observer twice notifies it twice.
func (r *Registry) Register(obs Observer) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.observers = append(r.observers, obs)
}

// Unregister removes the first occurrence of the observer from the
// notification order. Unknown observers are ignored.
func (r *Registry) Unregister(obs Observer) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for i, registered := range r.observers {
		if registered == obs {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// UnregisterAll removes every registered observer.
func (r *Registry) UnregisterAll() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.observers = nil
}

// snapshot returns the current notification order. Callbacks are invoked on
// the snapshot so an observer may register or unregister from within a
// callback without deadlocking.
func (r *Registry) snapshot() []Observer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	return observers
}

// NotifyMessageAssembled delivers a completed message to every observer in
// registration order.
func (r *Registry) NotifyMessageAssembled(peerID int32, msg *wire.NetMessage) {
	for _, obs := range r.snapshot() {
		obs.OnMessageAssembled(peerID, msg)
	}
}

// NotifyProtoconfReceived delivers a peer's protocol configuration to every
// observer in registration order.
func (r *Registry) NotifyProtoconfReceived(peerID int32, protoconf *wire.MsgProtoconf) {
	for _, obs := range r.snapshot() {
		obs.OnProtoconfReceived(peerID, protoconf)
	}
}

// NotifyProtocolViolation reports a protocol violation to every observer in
// registration order.
func (r *Registry) NotifyProtocolViolation(peerID int32, err error) {
	for _, obs := range r.snapshot() {
		obs.OnProtocolViolation(peerID, err)
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry. Connections dispatch to
// it unless they are configured with an explicit registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
