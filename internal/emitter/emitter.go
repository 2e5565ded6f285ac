// Package emitter owns the node's radio. It builds the advertising payload
// for the active mode, moves between iBeacon, free-payload and connectable
// advertising, registers GATT services and queues connection events for the
// control loop.
package emitter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"eolos-node/internal/adv"
	"eolos-node/internal/gatt"
	"eolos-node/internal/radio"
)

var (
	ErrNotPoweredOn     = errors.New("emitter: not powered on")
	ErrAlreadyPoweredOn = errors.New("emitter: already powered on")
)

// DefaultEventBuffer is the connection event queue length.
const DefaultEventBuffer = 16

// Identity is fixed for the emitter's lifetime.
type Identity struct {
	Name           string
	ManufacturerID uint16
	TxPower        int8
}

type Option func(*Emitter)

func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithActivationPolicy(p ActivationPolicy) Option {
	return func(e *Emitter) { e.policy = p }
}

// WithInterval sets both advertising interval bounds, in 0.625 ms ticks.
func WithInterval(ticks uint16) Option {
	return func(e *Emitter) {
		if ticks > 0 {
			e.interval = ticks
		}
	}
}

func WithEventBuffer(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.eventBuf = n
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// Emitter is safe for concurrent use. Radio configuration is serialized by a
// single lock so a half-built payload is never started.
type Emitter struct {
	radio    radio.Radio
	id       Identity
	logger   *slog.Logger
	policy   ActivationPolicy
	interval uint16
	eventBuf int
	now      func() time.Time

	mu       sync.Mutex
	powered  bool
	mode     Mode
	frame    adv.Frame
	hasFrame bool

	cbMu           sync.Mutex
	onConnected    OnConnected
	onDisconnected OnDisconnected
	events         chan ConnEvent
	dropped        atomic.Uint64
}

// New returns an emitter driving r. The company ID defaults to Apple's
// (0x004C) so the beacon frame is readable by iBeacon scanners.
func New(r radio.Radio, id Identity, opts ...Option) *Emitter {
	if id.ManufacturerID == 0 {
		id.ManufacturerID = adv.AppleCompanyID
	}
	e := &Emitter{
		radio:    r,
		id:       id,
		logger:   slog.Default(),
		policy:   ActivateAlways,
		interval: adv.DefaultInterval,
		eventBuf: DefaultEventBuffer,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.events = make(chan ConnEvent, e.eventBuf)
	return e
}

func (e *Emitter) Identity() Identity { return e.id }

func (e *Emitter) Policy() ActivationPolicy { return e.policy }

// PowerOn initializes the radio. It must be called once before anything
// else.
func (e *Emitter) PowerOn() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.powered {
		return ErrAlreadyPoweredOn
	}
	if err := e.radio.Begin(); err != nil {
		return fmt.Errorf("emitter: begin radio: %w", err)
	}
	// A previous session may have left the radio on the air.
	e.mode = ModeIdle
	if err := e.stopLocked(); err != nil {
		return err
	}
	e.powered = true
	e.logger.Info("emitter: powered on",
		"name", e.id.Name,
		"manufacturer", fmt.Sprintf("0x%04X", e.id.ManufacturerID),
		"tx_power", e.id.TxPower,
	)
	return nil
}

// PowerOnWithCallbacks powers on and installs both connection callbacks.
// Either may be nil.
func (e *Emitter) PowerOnWithCallbacks(onConnected OnConnected, onDisconnected OnDisconnected) error {
	if err := e.PowerOn(); err != nil {
		return err
	}
	e.InstallConnectCallback(onConnected)
	e.InstallDisconnectCallback(onDisconnected)
	return nil
}

// StopAdvertising is a no-op when nothing is on the air.
func (e *Emitter) StopAdvertising() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powered {
		return ErrNotPoweredOn
	}
	return e.stopLocked()
}

// stopLocked stops the radio whenever a mode is active, even if a connected
// peer has paused advertising, so the reconnect policy cannot bring it back.
// The mode only drops to Idle once the radio accepted the stop.
func (e *Emitter) stopLocked() error {
	prev := e.mode
	if prev == ModeIdle && !e.radio.AdvertisingIsRunning() {
		return nil
	}
	if err := e.radio.AdvertisingStop(); err != nil {
		return fmt.Errorf("emitter: stop advertising: %w", err)
	}
	e.mode = ModeIdle
	e.logger.Debug("emitter: advertising stopped", "mode", prev)
	return nil
}

// resetLocked brings the radio to Idle with empty payloads.
func (e *Emitter) resetLocked() error {
	if err := e.stopLocked(); err != nil {
		return err
	}
	e.radio.AdvertisingClear()
	e.radio.ScanResponseClear()
	e.hasFrame = false
	return nil
}

func (e *Emitter) IsAdvertising() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powered && e.radio.AdvertisingIsRunning()
}

// Mode reports the last mode started. A connectable emitter keeps its mode
// while a peer is connected even though the radio is not advertising.
func (e *Emitter) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Frame returns the manufacturer frame of the current mode.
func (e *Emitter) Frame() (adv.Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame, e.hasFrame
}

// StartIBeacon advertises b as a non-connectable iBeacon.
func (e *Emitter) StartIBeacon(b adv.Beacon) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powered {
		return ErrNotPoweredOn
	}
	if err := e.resetLocked(); err != nil {
		return err
	}

	f := b.Frame(e.id.ManufacturerID)
	e.radio.SetTxPower(e.id.TxPower)
	e.radio.SetName(e.id.Name)
	e.check(e.radio.ScanResponseAddName(), "scan response name")
	e.check(e.radio.AdvertisingSetBeacon(f), "beacon")
	e.radio.AdvertisingSetReconnectPolicy(true)
	e.radio.AdvertisingSetInterval(e.interval, e.interval)

	if err := e.startLocked(ModeIBeacon); err != nil {
		return err
	}
	e.frame, e.hasFrame = f, true
	e.logger.Debug("emitter: ibeacon started", "major", b.Major, "minor", b.Minor, "power", b.MeasuredPower)
	return nil
}

// StartFreePayload advertises up to adv.PayloadLen bytes of payload inside
// the manufacturer frame. Longer payloads are truncated.
func (e *Emitter) StartFreePayload(payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powered {
		return ErrNotPoweredOn
	}
	if err := e.resetLocked(); err != nil {
		return err
	}
	if len(payload) > adv.PayloadLen {
		e.logger.Debug("emitter: payload truncated", "len", len(payload), "max", adv.PayloadLen)
	}

	f := adv.FreePayload(e.id.ManufacturerID, payload)
	e.radio.SetName(e.id.Name)
	e.check(e.radio.ScanResponseAddName(), "scan response name")
	e.check(e.radio.AdvertisingAddFlags(adv.FlagsGeneralDiscLEOnly), "flags")
	e.check(e.radio.AdvertisingAddManufacturerData(f.Bytes()), "manufacturer data")
	e.radio.AdvertisingSetReconnectPolicy(true)
	e.radio.AdvertisingSetInterval(e.interval, e.interval)
	e.radio.AdvertisingSetFastTimeout(1)

	if err := e.startLocked(ModeFreePayload); err != nil {
		return err
	}
	e.frame, e.hasFrame = f, true
	e.logger.Debug("emitter: free payload started", "frame", f)
	return nil
}

// StartConnectable advertises the node as a connectable peripheral listing
// the given services.
func (e *Emitter) StartConnectable(services ...*gatt.Service) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powered {
		return ErrNotPoweredOn
	}
	if err := e.resetLocked(); err != nil {
		return err
	}

	e.radio.SetTxPower(e.id.TxPower)
	e.radio.SetName(e.id.Name)
	e.check(e.radio.AdvertisingAddFlags(adv.FlagsGeneralDiscLEOnly), "flags")
	for _, s := range services {
		e.check(e.radio.AdvertisingAddService(s), "service "+s.Name)
	}
	e.check(e.radio.ScanResponseAddName(), "scan response name")
	e.radio.AdvertisingSetConnectable(true)
	e.radio.AdvertisingSetReconnectPolicy(true)
	e.radio.AdvertisingSetInterval(e.interval, e.interval)

	if err := e.startLocked(ModeConnectable); err != nil {
		return err
	}
	e.logger.Debug("emitter: connectable started", "services", len(services))
	return nil
}

func (e *Emitter) startLocked(m Mode) error {
	if err := e.radio.AdvertisingStart(0); err != nil {
		e.mode = ModeIdle
		return fmt.Errorf("emitter: start %s: %w", m, err)
	}
	e.mode = m
	return nil
}

// check logs a field the radio refused. Refusals do not fail the start; the
// node keeps advertising whatever the radio accepted.
func (e *Emitter) check(ok bool, field string) {
	if !ok {
		e.logger.Warn("emitter: radio refused field", "field", field)
	}
}

// Connection looks up a live connection by handle.
func (e *Emitter) Connection(h radio.Handle) (radio.Connection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.radio.Connection(h)
}
