package gatt

import (
	"bytes"
	"errors"
	"testing"
)

func TestService_AttachKeepsOrder(t *testing.T) {
	s := NewService("environment", New16BitUUID(0x181A))
	a := NewCharacteristic("o3", New16BitUUID(0x2BD4), PermRead, nil)
	b := NewCharacteristic("temperature", New16BitUUID(0x2A6E), PermRead|PermNotify, nil)
	c := NewCharacteristic("humidity", New16BitUUID(0x2A6F), PermRead, nil)

	if err := s.Attach(a, b); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := s.Attach(c); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	got := s.Characteristics()
	want := []*Characteristic{a, b, c}
	if len(got) != len(want) {
		t.Fatalf("len(Characteristics()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Characteristics()[%d] = %s, want %s", i, got[i].Name, want[i].Name)
		}
	}
}

func TestService_AttachAfterActivateRejected(t *testing.T) {
	s := NewService("environment", New16BitUUID(0x181A))
	s.Activate()
	if !s.Active() {
		t.Fatal("Active() = false after Activate")
	}

	err := s.Attach(NewCharacteristic("o3", New16BitUUID(0x2BD4), PermRead, nil))
	if !errors.Is(err, ErrServiceActive) {
		t.Fatalf("Attach() error = %v, want ErrServiceActive", err)
	}
	if n := len(s.Characteristics()); n != 0 {
		t.Fatalf("len(Characteristics()) = %d, want 0", n)
	}
}

func TestService_AttachNil(t *testing.T) {
	s := NewService("environment", New16BitUUID(0x181A))
	if err := s.Attach(nil); !errors.Is(err, ErrNilCharacteristic) {
		t.Fatalf("Attach(nil) error = %v, want ErrNilCharacteristic", err)
	}
}

func TestCharacteristic_SetValueNotifiesHook(t *testing.T) {
	c := NewCharacteristic("o3", New16BitUUID(0x2BD4), PermRead, []byte{0})
	var pushed []byte
	c.OnWrite(func(v []byte) { pushed = append([]byte(nil), v...) })

	c.SetValue([]byte{1, 2, 3})

	if !bytes.Equal(c.Value(), []byte{1, 2, 3}) {
		t.Errorf("Value() = % X", c.Value())
	}
	if !bytes.Equal(pushed, []byte{1, 2, 3}) {
		t.Errorf("hook got % X", pushed)
	}
}

func TestUUID_16Bit(t *testing.T) {
	u := New16BitUUID(0x181A)
	if !u.Is16Bit() || u.Short() != 0x181A {
		t.Fatalf("Is16Bit/Short = %v/%04X", u.Is16Bit(), u.Short())
	}
	if got := u.String(); got != "0000181a-0000-1000-8000-00805f9b34fb" {
		t.Errorf("String() = %q", got)
	}

	p, err := ParseUUID("fda50693-a4e2-4fb1-afcf-c6eb07647825")
	if err != nil {
		t.Fatalf("ParseUUID: %v", err)
	}
	if p.Is16Bit() {
		t.Error("custom uuid reported as 16-bit")
	}
}
