package emitter

import (
	"testing"
	"time"

	"eolos-node/internal/radio"
)

func TestPowerOnWithCallbacks_Events(t *testing.T) {
	l := radio.NewLoopback()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := New(l, Identity{Name: "Emisora01"}, withClock(func() time.Time { return at }))

	var connected []radio.Handle
	type disc struct {
		h      radio.Handle
		reason uint8
	}
	var disconnected []disc
	err := e.PowerOnWithCallbacks(
		func(h radio.Handle) { connected = append(connected, h) },
		func(h radio.Handle, reason uint8) { disconnected = append(disconnected, disc{h, reason}) },
	)
	if err != nil {
		t.Fatalf("PowerOnWithCallbacks() error = %v", err)
	}
	if err := e.StartConnectable(); err != nil {
		t.Fatal(err)
	}

	h := l.Connect("AA:BB:CC:DD:EE:FF")
	if len(connected) != 0 {
		t.Fatal("callback ran in the radio context")
	}
	if c, ok := e.Connection(h); !ok || c.Address != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("Connection() = %+v, %v", c, ok)
	}
	if e.IsAdvertising() {
		t.Error("still advertising while connected")
	}

	l.Disconnect(h, radio.ReasonRemoteTerminated)
	if n := e.Dispatch(); n != 2 {
		t.Fatalf("Dispatch() = %d, want 2", n)
	}
	if len(connected) != 1 || connected[0] != h {
		t.Fatalf("connected = %v", connected)
	}
	if len(disconnected) != 1 || disconnected[0].reason != radio.ReasonRemoteTerminated {
		t.Fatalf("disconnected = %v", disconnected)
	}
	if !e.IsAdvertising() {
		t.Error("advertising did not resume after disconnect")
	}
	if _, ok := e.Connection(h); ok {
		t.Error("Connection() ok after disconnect")
	}
	if e.Mode() != ModeConnectable {
		t.Errorf("mode = %v", e.Mode())
	}
}

func TestEvents_Channel(t *testing.T) {
	l := radio.NewLoopback()
	e := New(l, Identity{Name: "n"})
	if err := e.PowerOnWithCallbacks(nil, nil); err != nil {
		t.Fatal(err)
	}
	h := l.Connect("11:22:33:44:55:66")

	select {
	case ev := <-e.Events():
		if ev.Kind != EventConnected || ev.Handle != h {
			t.Fatalf("event = %+v", ev)
		}
		e.Handle(ev)
	case <-time.After(time.Second):
		t.Fatal("no connect event")
	}
}

func TestEvents_FullQueueDrops(t *testing.T) {
	l := radio.NewLoopback()
	e := New(l, Identity{Name: "n"}, WithEventBuffer(1))
	if err := e.PowerOnWithCallbacks(nil, nil); err != nil {
		t.Fatal(err)
	}
	l.Connect("a")
	l.Connect("b")
	l.Connect("c")

	if got := e.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
	if n := e.Dispatch(); n != 1 {
		t.Fatalf("Dispatch() = %d, want 1", n)
	}
}

func TestPowerOn_NoCallbacksInstalled(t *testing.T) {
	l := radio.NewLoopback()
	e := New(l, Identity{Name: "n"})
	if err := e.PowerOn(); err != nil {
		t.Fatal(err)
	}
	l.Connect("a")
	if n := e.Dispatch(); n != 0 {
		t.Fatalf("Dispatch() = %d, want 0 without callbacks", n)
	}
}

func TestEventKindString(t *testing.T) {
	if EventConnected.String() != "connected" || EventDisconnected.String() != "disconnected" {
		t.Fatal("unexpected EventKind strings")
	}
	if EventKind(0).String() != "unknown" {
		t.Fatal("zero EventKind should be unknown")
	}
}
