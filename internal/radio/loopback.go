package radio

import (
	"fmt"
	"sync"
	"time"

	"eolos-node/internal/adv"
	"eolos-node/internal/gatt"
)

// Operation names recorded in the loopback call log.
const (
	OpBegin              = "begin"
	OpStop               = "advertising.stop"
	OpClear              = "advertising.clear"
	OpScanClear          = "scanresponse.clear"
	OpTxPower            = "txpower"
	OpName               = "name"
	OpScanName           = "scanresponse.name"
	OpFlags              = "advertising.flags"
	OpBeacon             = "advertising.beacon"
	OpManufacturerData   = "advertising.manufacturer"
	OpAdvertiseService   = "advertising.service"
	OpConnectable        = "advertising.connectable"
	OpReconnect          = "advertising.reconnect"
	OpInterval           = "advertising.interval"
	OpFastTimeout        = "advertising.fasttimeout"
	OpStart              = "advertising.start"
	OpAddService         = "service.add"
	OpConnectCallback    = "callback.connect"
	OpDisconnectCallback = "callback.disconnect"
)

// DefaultServiceCapacity bounds the loopback attribute table.
const DefaultServiceCapacity = 4

// Call is one entry of the loopback call log.
type Call struct {
	Op     string
	Detail string
}

// Advertisement is what the loopback radio put on the air at a Start.
type Advertisement struct {
	Primary      adv.Packet
	ScanResponse adv.Packet
	Connectable  bool
	TxPower      int8
	IntervalMin  uint16
	IntervalMax  uint16
	FastTimeout  uint16
	Restart      bool
	Duration     uint16
}

// Loopback is an in-memory Radio. It renders the advertising payloads with
// adv.Packet, so anything that would not fit a legacy PDU is refused the way
// a controller would refuse it.
type Loopback struct {
	mu sync.Mutex

	begun    bool
	running  bool
	resume   bool
	name     string
	txPower  int8
	primary  adv.Packet
	scanResp adv.Packet
	conn     bool
	restart  bool
	ivMin    uint16
	ivMax    uint16
	fastTO   uint16
	stopT    *time.Timer
	capacity int
	reject   map[string]bool
	stopErr  error

	services []*gatt.Service
	aired    []Advertisement
	log      []Call

	onConnect    func(Handle)
	onDisconnect func(Handle, uint8)
	conns        map[Handle]Connection
	nextHandle   Handle
}

// NewLoopback returns a loopback radio with DefaultServiceCapacity.
func NewLoopback() *Loopback {
	return &Loopback{
		capacity:   DefaultServiceCapacity,
		reject:     make(map[string]bool),
		conns:      make(map[Handle]Connection),
		nextHandle: 1,
	}
}

// SetServiceCapacity changes how many services AddService accepts.
func (l *Loopback) SetServiceCapacity(n int) {
	l.mu.Lock()
	l.capacity = n
	l.mu.Unlock()
}

// Reject makes the radio drop every later call of the given setter op, as a
// firmware that silently ignores a field would.
func (l *Loopback) Reject(op string) {
	l.mu.Lock()
	l.reject[op] = true
	l.mu.Unlock()
}

// FailStop makes every later AdvertisingStop return err and leave the radio
// as it was. A nil err restores normal stops.
func (l *Loopback) FailStop(err error) {
	l.mu.Lock()
	l.stopErr = err
	l.mu.Unlock()
}

func (l *Loopback) record(op, format string, args ...any) {
	l.log = append(l.log, Call{Op: op, Detail: fmt.Sprintf(format, args...)})
}

func (l *Loopback) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpBegin, "")
	l.begun = true
	return nil
}

func (l *Loopback) AdvertisingIsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loopback) AdvertisingStop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpStop, "")
	if l.stopErr != nil {
		return l.stopErr
	}
	l.stopLocked()
	return nil
}

func (l *Loopback) stopLocked() {
	l.running = false
	l.resume = false
	if l.stopT != nil {
		l.stopT.Stop()
		l.stopT = nil
	}
}

func (l *Loopback) AdvertisingClear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpClear, "")
	l.primary = nil
	l.conn = false
	l.resume = false
}

func (l *Loopback) ScanResponseClear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpScanClear, "")
	l.scanResp = nil
}

func (l *Loopback) SetTxPower(dbm int8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpTxPower, "%d", dbm)
	if l.reject[OpTxPower] {
		return
	}
	l.txPower = dbm
}

func (l *Loopback) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpName, "%s", name)
	if l.reject[OpName] {
		return
	}
	l.name = name
}

func (l *Loopback) ScanResponseAddName() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpScanName, "%s", l.name)
	return l.appendLocked(OpScanName, &l.scanResp, l.scanResp.AppendCompleteName(l.name))
}

func (l *Loopback) AdvertisingAddFlags(flags uint8) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpFlags, "%02X", flags)
	return l.appendLocked(OpFlags, &l.primary, l.primary.AppendFlags(flags))
}

// AdvertisingSetBeacon adds the default discoverable flags when none were set,
// followed by the beacon frame.
func (l *Loopback) AdvertisingSetBeacon(f adv.Frame) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpBeacon, "%s", f)
	p := l.primary
	if _, ok := p.Flags(); !ok {
		p = p.AppendFlags(adv.FlagsGeneralDiscLEOnly)
	}
	return l.appendLocked(OpBeacon, &l.primary, p.AppendManufacturerData(f.Bytes()))
}

func (l *Loopback) AdvertisingAddManufacturerData(b []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpManufacturerData, "% X", b)
	return l.appendLocked(OpManufacturerData, &l.primary, l.primary.AppendManufacturerData(b))
}

func (l *Loopback) AdvertisingAddService(s *gatt.Service) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpAdvertiseService, "%s", s.UUID)
	var next adv.Packet
	if s.UUID.Is16Bit() {
		next = l.primary.AppendUUID16(s.UUID.Short())
	} else {
		next = l.primary.AppendUUID128(s.UUID)
	}
	return l.appendLocked(OpAdvertiseService, &l.primary, next)
}

func (l *Loopback) appendLocked(op string, dst *adv.Packet, next adv.Packet) bool {
	if l.reject[op] || next.Validate() != nil {
		return false
	}
	*dst = next
	return true
}

func (l *Loopback) AdvertisingSetConnectable(connectable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpConnectable, "%t", connectable)
	l.conn = connectable
}

func (l *Loopback) AdvertisingSetReconnectPolicy(restart bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpReconnect, "%t", restart)
	l.restart = restart
}

func (l *Loopback) AdvertisingSetInterval(min, max uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpInterval, "%d/%d", min, max)
	if l.reject[OpInterval] {
		return
	}
	l.ivMin, l.ivMax = min, max
}

func (l *Loopback) AdvertisingSetFastTimeout(seconds uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpFastTimeout, "%d", seconds)
	l.fastTO = seconds
}

// AdvertisingStart puts the current configuration on the air. A non-zero
// duration stops advertising after that many seconds.
func (l *Loopback) AdvertisingStart(seconds uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpStart, "%d", seconds)
	if !l.begun {
		return ErrNotBegun
	}
	if l.running {
		return ErrAdvertisingRunning
	}
	l.running = true
	l.aired = append(l.aired, Advertisement{
		Primary:      append(adv.Packet(nil), l.primary...),
		ScanResponse: append(adv.Packet(nil), l.scanResp...),
		Connectable:  l.conn,
		TxPower:      l.txPower,
		IntervalMin:  l.ivMin,
		IntervalMax:  l.ivMax,
		FastTimeout:  l.fastTO,
		Restart:      l.restart,
		Duration:     seconds,
	})
	if seconds > 0 {
		l.stopT = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
			l.mu.Lock()
			l.running = false
			l.stopT = nil
			l.mu.Unlock()
		})
	}
	return nil
}

func (l *Loopback) AddService(s *gatt.Service) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpAddService, "%s", s.UUID)
	if !l.begun {
		return ErrNotBegun
	}
	for _, have := range l.services {
		if have.UUID == s.UUID {
			return fmt.Errorf("%w: %s", ErrDuplicateService, s.UUID)
		}
	}
	if len(l.services) >= l.capacity {
		return fmt.Errorf("%w: %d services", ErrServiceCapacity, l.capacity)
	}
	l.services = append(l.services, s)
	return nil
}

func (l *Loopback) SetConnectCallback(fn func(h Handle)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpConnectCallback, "")
	l.onConnect = fn
}

func (l *Loopback) SetDisconnectCallback(fn func(h Handle, reason uint8)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpDisconnectCallback, "")
	l.onDisconnect = fn
}

func (l *Loopback) Connection(h Handle) (Connection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.conns[h]
	return c, ok
}

// Connect simulates a central connecting. A peripheral stops advertising
// while connected. The connect callback runs outside the radio lock.
func (l *Loopback) Connect(address string) Handle {
	l.mu.Lock()
	h := l.nextHandle
	l.nextHandle++
	l.conns[h] = Connection{Handle: h, Address: address, ConnectedAt: time.Now()}
	resume := l.running
	l.stopLocked()
	l.resume = resume
	fn := l.onConnect
	l.mu.Unlock()

	if fn != nil {
		fn(h)
	}
	return h
}

// Disconnect simulates the peer going away. With the reconnect policy set,
// advertising resumes if it was running before the connection.
func (l *Loopback) Disconnect(h Handle, reason uint8) {
	l.mu.Lock()
	if _, ok := l.conns[h]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.conns, h)
	if l.restart && l.resume {
		l.running = true
	}
	l.resume = false
	fn := l.onDisconnect
	l.mu.Unlock()

	if fn != nil {
		fn(h, reason)
	}
}

// Calls returns a copy of the call log.
func (l *Loopback) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.log...)
}

// Ops returns the op names of the call log in order.
func (l *Loopback) Ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.log))
	for i, c := range l.log {
		out[i] = c.Op
	}
	return out
}

// ResetCalls empties the call log.
func (l *Loopback) ResetCalls() {
	l.mu.Lock()
	l.log = nil
	l.mu.Unlock()
}

// Aired returns every advertisement started so far.
func (l *Loopback) Aired() []Advertisement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Advertisement(nil), l.aired...)
}

// Current returns the most recently started advertisement.
func (l *Loopback) Current() (Advertisement, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.aired) == 0 {
		return Advertisement{}, false
	}
	return l.aired[len(l.aired)-1], true
}

// Services returns the registered services in registration order.
func (l *Loopback) Services() []*gatt.Service {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*gatt.Service(nil), l.services...)
}
