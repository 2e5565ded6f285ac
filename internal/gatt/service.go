package gatt

import (
	"fmt"
	"sync"
)

// Permission is a bit set of characteristic properties.
type Permission uint8

const (
	PermBroadcast Permission = 1 << iota
	PermRead
	PermWriteWithoutResponse
	PermWrite
	PermNotify
	PermIndicate
)

func (p Permission) Read() bool { return p&PermRead != 0 }
func (p Permission) Write() bool { return p&PermWrite != 0 }
func (p Permission) Notify() bool { return p&PermNotify != 0 }

// Characteristic is a single value exposed by a service. Its value can be
// updated at any time, including after the owning service is active.
type Characteristic struct {
	UUID  UUID
	Name  string
	Flags Permission

	mu      sync.Mutex
	value   []byte
	written func(v []byte)
}

// NewCharacteristic returns a characteristic with a copy of the initial
// value.
func NewCharacteristic(name string, id UUID, flags Permission, initial []byte) *Characteristic {
	c := &Characteristic{UUID: id, Name: name, Flags: flags}
	c.value = append([]byte(nil), initial...)
	return c
}

// Value returns a copy of the current value.
func (c *Characteristic) Value() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...)
}

// SetValue replaces the value and notifies the radio binding, if any.
func (c *Characteristic) SetValue(v []byte) {
	c.mu.Lock()
	c.value = append(c.value[:0], v...)
	fn := c.written
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// OnWrite installs the hook a radio implementation uses to push value
// changes to its own attribute table.
func (c *Characteristic) OnWrite(fn func(v []byte)) {
	c.mu.Lock()
	c.written = fn
	c.mu.Unlock()
}

// Service is a named, ordered group of characteristics. Characteristics must
// be attached before Activate; activation cannot be undone.
type Service struct {
	UUID UUID
	Name string

	mu     sync.Mutex
	chars  []*Characteristic
	active bool
}

func NewService(name string, id UUID) *Service {
	return &Service{UUID: id, Name: name}
}

// Attach appends characteristics in the order given. It is an in-memory
// operation; the radio only learns about them on registration.
func (s *Service) Attach(cs ...*Characteristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return fmt.Errorf("%w: %s", ErrServiceActive, s.Name)
	}
	for _, c := range cs {
		if c == nil {
			return ErrNilCharacteristic
		}
	}
	s.chars = append(s.chars, cs...)
	return nil
}

// Characteristics returns the attached characteristics in attach order.
func (s *Service) Characteristics() []*Characteristic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Characteristic(nil), s.chars...)
}

// Activate commits the service. Calling it twice is harmless.
func (s *Service) Activate() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
