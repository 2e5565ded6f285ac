package adv

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Beacon holds the fields of a standard iBeacon record.
// UUID is kept in wire order; Major and Minor go out big-endian.
type Beacon struct {
	UUID          [16]byte
	Major         uint16
	Minor         uint16
	MeasuredPower int8 // calibrated RSSI at 1 m
}

// ParseBeaconUUID accepts the canonical textual form used in the QR labels,
// e.g. "fda50693-a4e2-4fb1-afcf-c6eb07647825".
func ParseBeaconUUID(s string) ([16]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, fmt.Errorf("beacon uuid %q: %w", s, err)
	}
	return [16]byte(u), nil
}

// Frame lays the beacon out in the manufacturer data frame.
func (b Beacon) Frame(companyID uint16) Frame {
	f := NewFrame(companyID)
	p := f[PayloadOffset:]
	copy(p[0:16], b.UUID[:])
	binary.BigEndian.PutUint16(p[16:18], b.Major)
	binary.BigEndian.PutUint16(p[18:20], b.Minor)
	p[20] = uint8(b.MeasuredPower)
	return f
}

// Beacon reads the payload region back as iBeacon fields. It does not check
// whether the frame was built as a beacon; a free payload decodes to noise.
func (f Frame) Beacon() Beacon {
	p := f[PayloadOffset:]
	var b Beacon
	copy(b.UUID[:], p[0:16])
	b.Major = binary.BigEndian.Uint16(p[16:18])
	b.Minor = binary.BigEndian.Uint16(p[18:20])
	b.MeasuredPower = int8(p[20])
	return b
}

func (b Beacon) String() string {
	return fmt.Sprintf("uuid=%s major=%d minor=%d rssi=%d",
		uuid.UUID(b.UUID).String(), b.Major, b.Minor, b.MeasuredPower)
}
