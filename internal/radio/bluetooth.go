package radio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"eolos-node/internal/adv"
	"eolos-node/internal/gatt"
)

// Bluetooth drives a tinygo.org/x/bluetooth adapter: BlueZ on Linux hosts,
// the SoftDevice on nRF52 firmware builds.
//
// The tinygo API takes the whole advertisement in one Configure call, so the
// individual setters only stage fields; AdvertisingStart configures and starts.
// The stack has no scan response and no tx power control: the name is put in
// the primary packet only when it still fits, and the tx power is recorded but
// not applied. The stack writes the flags field itself as general
// discoverable, BR/EDR not supported (0x06); any other flags are refused. It
// has no fast advertising phase, so the fast timeout is only logged.
type Bluetooth struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	logger  *slog.Logger

	mu          sync.Mutex
	begun       bool
	running     bool
	resume      bool
	name        string
	nameInScan  bool
	txPower     int8
	mfg         []bluetooth.ManufacturerDataElement
	serviceIDs  []bluetooth.UUID
	connectable bool
	restart     bool
	ivMin       uint16
	stopT       *time.Timer

	registered map[gatt.UUID]struct{}

	onConnect    func(Handle)
	onDisconnect func(Handle, uint8)
	handles      map[string]Handle
	conns        map[Handle]Connection
	nextHandle   Handle
}

// NewBluetooth wraps an adapter, e.g. bluetooth.DefaultAdapter or
// bluetooth.NewAdapter("hci0"). The adapter is enabled by Begin.
func NewBluetooth(adapter *bluetooth.Adapter, logger *slog.Logger) *Bluetooth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bluetooth{
		adapter:    adapter,
		logger:     logger,
		registered: make(map[gatt.UUID]struct{}),
		handles:    make(map[string]Handle),
		conns:      make(map[Handle]Connection),
		nextHandle: 1,
	}
}

func (b *Bluetooth) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}
	b.adv = b.adapter.DefaultAdvertisement()
	b.adapter.SetConnectHandler(b.handleConnect)
	b.begun = true
	return nil
}

func (b *Bluetooth) AdvertisingIsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bluetooth) AdvertisingStop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *Bluetooth) stopLocked() error {
	b.resume = false
	if b.stopT != nil {
		b.stopT.Stop()
		b.stopT = nil
	}
	if !b.running {
		return nil
	}
	b.running = false
	if err := b.adv.Stop(); err != nil {
		return fmt.Errorf("ble adv stop: %w", err)
	}
	return nil
}

func (b *Bluetooth) AdvertisingClear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resume = false
	b.mfg = nil
	b.serviceIDs = nil
	b.connectable = false
}

func (b *Bluetooth) ScanResponseClear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nameInScan = false
}

func (b *Bluetooth) SetTxPower(dbm int8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txPower = dbm
	b.logger.Debug("ble: tx power staged, not supported by stack", "dbm", dbm)
}

func (b *Bluetooth) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

func (b *Bluetooth) ScanResponseAddName() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nameInScan = b.name != ""
	return b.nameInScan
}

// AdvertisingAddFlags accepts only the flags the stack advertises anyway.
func (b *Bluetooth) AdvertisingAddFlags(flags uint8) bool {
	return flags == adv.FlagsGeneralDiscLEOnly
}

func (b *Bluetooth) AdvertisingSetBeacon(f adv.Frame) bool {
	return b.AdvertisingAddManufacturerData(f.Bytes())
}

// AdvertisingAddManufacturerData splits b into the little-endian company ID
// and the data that follows it.
func (b *Bluetooth) AdvertisingAddManufacturerData(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mfg = append(b.mfg, bluetooth.ManufacturerDataElement{
		CompanyID: binary.LittleEndian.Uint16(data[0:2]),
		Data:      append([]byte(nil), data[2:]...),
	})
	return true
}

func (b *Bluetooth) AdvertisingAddService(s *gatt.Service) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serviceIDs = append(b.serviceIDs, toBluetoothUUID(s.UUID))
	return true
}

func (b *Bluetooth) AdvertisingSetConnectable(connectable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectable = connectable
}

func (b *Bluetooth) AdvertisingSetReconnectPolicy(restart bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restart = restart
}

// AdvertisingSetInterval uses min; the stack takes a single interval.
func (b *Bluetooth) AdvertisingSetInterval(min, max uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ivMin = min
}

func (b *Bluetooth) AdvertisingSetFastTimeout(seconds uint16) {
	b.logger.Debug("ble: fast advertising not supported by stack", "seconds", seconds)
}

func (b *Bluetooth) AdvertisingStart(seconds uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.begun {
		return ErrNotBegun
	}
	if b.running {
		return ErrAdvertisingRunning
	}

	opts := b.optionsLocked()
	if err := b.adv.Configure(opts); err != nil {
		return fmt.Errorf("ble adv configure: %w", err)
	}
	if err := b.adv.Start(); err != nil {
		return fmt.Errorf("ble adv start: %w", err)
	}
	b.running = true

	if seconds > 0 {
		b.stopT = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.stopT = nil
			if err := b.stopLocked(); err != nil {
				b.logger.Warn("ble: timed stop failed", "error", err)
			}
		})
	}
	return nil
}

func (b *Bluetooth) optionsLocked() bluetooth.AdvertisementOptions {
	typ := bluetooth.AdvertisingTypeNonConnInd
	if b.connectable {
		typ = bluetooth.AdvertisingTypeInd
	}
	opts := bluetooth.AdvertisementOptions{
		AdvertisementType: typ,
		ServiceUUIDs:      b.serviceIDs,
		ManufacturerData:  b.mfg,
	}
	if b.ivMin > 0 {
		opts.Interval = bluetooth.NewDuration(TicksToDuration(b.ivMin))
	}
	if b.nameInScan {
		if b.primaryLenLocked()+2+len(b.name) <= adv.MaxPacketLen {
			opts.LocalName = b.name
		} else {
			b.logger.Debug("ble: name left out of primary packet", "name", b.name)
		}
	}
	return opts
}

// primaryLenLocked estimates the primary payload the stack will build.
func (b *Bluetooth) primaryLenLocked() int {
	n := 3 // flags
	for _, m := range b.mfg {
		n += 2 + 2 + len(m.Data)
	}
	for _, id := range b.serviceIDs {
		if id.Is16Bit() {
			n += 2 + 2
		} else {
			n += 2 + 16
		}
	}
	return n
}

func (b *Bluetooth) AddService(s *gatt.Service) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.begun {
		return ErrNotBegun
	}
	if _, ok := b.registered[s.UUID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateService, s.UUID)
	}

	chars := s.Characteristics()
	svc := bluetooth.Service{
		UUID:            toBluetoothUUID(s.UUID),
		Characteristics: make([]bluetooth.CharacteristicConfig, len(chars)),
	}
	handles := make([]bluetooth.Characteristic, len(chars))
	for i, c := range chars {
		svc.Characteristics[i] = bluetooth.CharacteristicConfig{
			Handle: &handles[i],
			UUID:   toBluetoothUUID(c.UUID),
			Value:  c.Value(),
			Flags:  toBluetoothPermissions(c.Flags),
		}
	}
	if err := b.adapter.AddService(&svc); err != nil {
		return fmt.Errorf("ble add service %s: %w", s.Name, err)
	}
	for i, c := range chars {
		h := &handles[i]
		name := c.Name
		c.OnWrite(func(v []byte) {
			if _, err := h.Write(v); err != nil {
				b.logger.Debug("ble: characteristic write failed", "characteristic", name, "error", err)
			}
		})
	}
	b.registered[s.UUID] = struct{}{}
	return nil
}

func (b *Bluetooth) SetConnectCallback(fn func(h Handle)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onConnect = fn
}

func (b *Bluetooth) SetDisconnectCallback(fn func(h Handle, reason uint8)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDisconnect = fn
}

func (b *Bluetooth) Connection(h Handle) (Connection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[h]
	return c, ok
}

// handleConnect runs in the stack's event context.
func (b *Bluetooth) handleConnect(device bluetooth.Device, connected bool) {
	addr := device.Address.String()

	b.mu.Lock()
	if connected {
		h := b.nextHandle
		b.nextHandle++
		b.handles[addr] = h
		b.conns[h] = Connection{Handle: h, Address: addr, ConnectedAt: time.Now()}
		b.resume = b.running
		b.running = false
		fn := b.onConnect
		b.mu.Unlock()
		if fn != nil {
			fn(h)
		}
		return
	}

	h, ok := b.handles[addr]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.handles, addr)
	delete(b.conns, h)
	restart := b.restart && b.resume
	b.resume = false
	fn := b.onDisconnect
	b.mu.Unlock()

	if restart {
		go b.restartAdvertising()
	}
	if fn != nil {
		fn(h, ReasonUnknown)
	}
}

func (b *Bluetooth) restartAdvertising() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	if err := b.adv.Start(); err != nil {
		b.logger.Warn("ble: restart after disconnect failed", "error", err)
		return
	}
	b.running = true
}

func toBluetoothUUID(u gatt.UUID) bluetooth.UUID {
	if u.Is16Bit() {
		return bluetooth.New16BitUUID(u.Short())
	}
	return bluetooth.NewUUID(u)
}

func toBluetoothPermissions(p gatt.Permission) bluetooth.CharacteristicPermissions {
	var out bluetooth.CharacteristicPermissions
	if p&gatt.PermBroadcast != 0 {
		out |= bluetooth.CharacteristicBroadcastPermission
	}
	if p&gatt.PermRead != 0 {
		out |= bluetooth.CharacteristicReadPermission
	}
	if p&gatt.PermWriteWithoutResponse != 0 {
		out |= bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if p&gatt.PermWrite != 0 {
		out |= bluetooth.CharacteristicWritePermission
	}
	if p&gatt.PermNotify != 0 {
		out |= bluetooth.CharacteristicNotifyPermission
	}
	if p&gatt.PermIndicate != 0 {
		out |= bluetooth.CharacteristicIndicatePermission
	}
	return out
}
