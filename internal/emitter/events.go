package emitter

import (
	"time"

	"eolos-node/internal/radio"
)

// EventKind tells connects from disconnects.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnEvent is a connection lifecycle notification recorded in the radio's
// event context and handled later by the control loop.
type ConnEvent struct {
	Kind   EventKind
	Handle radio.Handle
	Reason uint8
	At     time.Time
}

// OnConnected is called from the control loop for each connect.
type OnConnected func(h radio.Handle)

// OnDisconnected is called from the control loop for each disconnect.
type OnDisconnected func(h radio.Handle, reason uint8)

// enqueue never blocks: it runs in the radio's event context. Events that do
// not fit the queue are counted and dropped.
func (e *Emitter) enqueue(ev ConnEvent) {
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Events exposes the queue for select-based loops. Pass received events to
// Handle.
func (e *Emitter) Events() <-chan ConnEvent {
	return e.events
}

// Handle runs the installed callback for ev in the caller's goroutine.
func (e *Emitter) Handle(ev ConnEvent) {
	e.cbMu.Lock()
	onConn, onDisc := e.onConnected, e.onDisconnected
	e.cbMu.Unlock()

	switch ev.Kind {
	case EventConnected:
		e.logger.Info("emitter: peer connected", "handle", ev.Handle)
		if onConn != nil {
			onConn(ev.Handle)
		}
	case EventDisconnected:
		e.logger.Info("emitter: peer disconnected", "handle", ev.Handle, "reason", ev.Reason)
		if onDisc != nil {
			onDisc(ev.Handle, ev.Reason)
		}
	}
}

// Dispatch handles every queued event without waiting and returns how many
// were handled.
func (e *Emitter) Dispatch() int {
	n := 0
	for {
		select {
		case ev := <-e.events:
			e.Handle(ev)
			n++
		default:
			return n
		}
	}
}

// Dropped returns how many events were lost to a full queue.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// InstallConnectCallback routes radio connects through the event queue to fn.
func (e *Emitter) InstallConnectCallback(fn OnConnected) {
	e.cbMu.Lock()
	e.onConnected = fn
	e.cbMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.radio.SetConnectCallback(func(h radio.Handle) {
		e.enqueue(ConnEvent{Kind: EventConnected, Handle: h, At: e.now()})
	})
}

// InstallDisconnectCallback routes radio disconnects through the event queue
// to fn.
func (e *Emitter) InstallDisconnectCallback(fn OnDisconnected) {
	e.cbMu.Lock()
	e.onDisconnected = fn
	e.cbMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.radio.SetDisconnectCallback(func(h radio.Handle, reason uint8) {
		e.enqueue(ConnEvent{Kind: EventDisconnected, Handle: h, Reason: reason, At: e.now()})
	})
}
