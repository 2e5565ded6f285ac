package gatt

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// UUID is a 128-bit Bluetooth UUID in canonical (big-endian) byte order.
type UUID [16]byte

// baseUUID is the Bluetooth SIG base 0000xxxx-0000-1000-8000-00805F9B34FB.
var baseUUID = UUID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5F, 0x9B, 0x34, 0xFB}

// New16BitUUID expands a SIG-assigned 16-bit UUID onto the base UUID.
func New16BitUUID(short uint16) UUID {
	u := baseUUID
	binary.BigEndian.PutUint16(u[2:4], short)
	return u
}

// ParseUUID parses the canonical textual form.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("gatt uuid %q: %w", s, err)
	}
	return UUID(u), nil
}

// Is16Bit reports whether u lies on the SIG base UUID.
func (u UUID) Is16Bit() bool {
	v := u
	v[2], v[3] = 0, 0
	return v == baseUUID
}

// Short returns the 16-bit alias. Only meaningful when Is16Bit is true.
func (u UUID) Short() uint16 {
	return binary.BigEndian.Uint16(u[2:4])
}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}
