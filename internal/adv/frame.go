package adv

import (
	"encoding/binary"
	"fmt"
)

// Frame is the manufacturer-specific data block carried by every beacon
// advertisement the node emits. It is written to the radio in one piece.
type Frame [FrameLen]byte

// NewFrame returns a frame with the beacon-shaped header and the payload
// region set to Filler.
func NewFrame(companyID uint16) Frame {
	var f Frame
	binary.LittleEndian.PutUint16(f[0:2], companyID)
	f[2] = BeaconType
	f[3] = BeaconDataLen
	for i := PayloadOffset; i < FrameLen; i++ {
		f[i] = Filler
	}
	return f
}

// FreePayload builds a frame carrying application bytes instead of beacon
// fields. See SetPayload for the truncation rules.
func FreePayload(companyID uint16, p []byte) Frame {
	f := NewFrame(companyID)
	f.SetPayload(p)
	return f
}

// SetPayload copies at most PayloadLen bytes of p into the payload region and
// returns the number of bytes copied. Bytes past the copied prefix keep their
// previous value; anything beyond PayloadLen is dropped.
func (f *Frame) SetPayload(p []byte) int {
	return copy(f[PayloadOffset:], p)
}

// CompanyID returns the little-endian company identifier at offset 0.
func (f Frame) CompanyID() uint16 {
	return binary.LittleEndian.Uint16(f[0:2])
}

// Payload returns a copy of the 21 payload bytes.
func (f Frame) Payload() []byte {
	out := make([]byte, PayloadLen)
	copy(out, f[PayloadOffset:])
	return out
}

// Bytes returns the frame as a slice suitable for a single radio write.
func (f Frame) Bytes() []byte {
	out := make([]byte, FrameLen)
	copy(out, f[:])
	return out
}

func (f Frame) String() string {
	return fmt.Sprintf("% X", f[:])
}

// ParseFrame validates and copies a manufacturer data block received from the
// air or read back from a radio. Trailing bytes beyond FrameLen are ignored.
func ParseFrame(b []byte) (Frame, error) {
	var f Frame
	if len(b) < FrameLen {
		return f, fmt.Errorf("%w: got %d", ErrShortFrame, len(b))
	}
	if b[2] != BeaconType || b[3] != BeaconDataLen {
		return f, fmt.Errorf("%w: %02X %02X", ErrNotBeaconShaped, b[2], b[3])
	}
	copy(f[:], b[:FrameLen])
	return f, nil
}
