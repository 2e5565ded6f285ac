// Package radio defines the operations the emitter drives on a BLE radio and
// provides two implementations: Bluetooth, backed by tinygo.org/x/bluetooth,
// and Loopback, an in-memory radio used on hosts without hardware and in
// tests.
//
// Radios accept one advertising configuration at a time. Callers are expected
// to stop, clear, configure and start in that order; implementations are not
// safe for concurrent reconfiguration.
package radio

import (
	"errors"
	"time"

	"eolos-node/internal/adv"
	"eolos-node/internal/gatt"
)

// Handle identifies a live peer connection.
type Handle uint16

// Disconnect reasons (HCI error codes) reported to the disconnect callback.
const (
	ReasonUnknown          uint8 = 0x00
	ReasonTimeout          uint8 = 0x08
	ReasonRemoteTerminated uint8 = 0x13
	ReasonLocalTerminated  uint8 = 0x16
)

var (
	ErrNotBegun           = errors.New("radio: not initialized")
	ErrAdvertisingRunning = errors.New("radio: advertising already running")
	ErrServiceCapacity    = errors.New("radio: service table full")
	ErrDuplicateService   = errors.New("radio: service already registered")
)

// Connection is a snapshot of a live peer connection. It stays meaningful
// only until the peer disconnects.
type Connection struct {
	Handle      Handle
	Address     string
	ConnectedAt time.Time
}

// Radio is the capability set the emitter needs.
//
// Setters return false when the radio refuses a field (for example when it no
// longer fits the advertising payload). A radio may also accept a value and
// drop it later; that is not observable here.
type Radio interface {
	Begin() error

	AdvertisingIsRunning() bool
	AdvertisingStop() error
	AdvertisingClear()
	ScanResponseClear()

	SetTxPower(dbm int8)
	SetName(name string)
	ScanResponseAddName() bool

	AdvertisingAddFlags(flags uint8) bool
	AdvertisingSetBeacon(f adv.Frame) bool
	AdvertisingAddManufacturerData(b []byte) bool
	AdvertisingAddService(s *gatt.Service) bool
	AdvertisingSetConnectable(connectable bool)
	AdvertisingSetReconnectPolicy(restart bool)
	AdvertisingSetInterval(min, max uint16)
	AdvertisingSetFastTimeout(seconds uint16)
	AdvertisingStart(seconds uint16) error

	AddService(s *gatt.Service) error

	SetConnectCallback(fn func(h Handle))
	SetDisconnectCallback(fn func(h Handle, reason uint8))
	Connection(h Handle) (Connection, bool)
}

// TicksToDuration converts 0.625 ms radio ticks to a time.Duration.
func TicksToDuration(ticks uint16) time.Duration {
	return time.Duration(ticks) * adv.TickMicros * time.Microsecond
}
