package publisher

import (
	"encoding/binary"
	"math"

	"eolos-node/internal/adv"
)

// Free payload layout: Kind(1) | Counter(1) | Value(4, float32 LE) | name...
const (
	payloadHeaderLen = 6
)

// EncodeBeacon packs a reading into iBeacon fields. The scanner reads the
// measurement from Minor, scaled and rounded; Major carries kind and counter.
func EncodeBeacon(id [16]byte, power int8, kind Kind, counter uint8, value, scale float64) adv.Beacon {
	return adv.Beacon{
		UUID:          id,
		Major:         uint16(kind)<<8 | uint16(counter),
		Minor:         Quantize(value, scale),
		MeasuredPower: power,
	}
}

// DecodeBeacon is the inverse of EncodeBeacon, up to quantization.
func DecodeBeacon(b adv.Beacon, scale float64) (Kind, uint8, float64) {
	if scale <= 0 {
		scale = 1
	}
	return Kind(b.Major >> 8), uint8(b.Major), float64(b.Minor) / scale
}

// Quantize rounds value*scale into the 16-bit minor field, clamping at both
// ends. NaN encodes as 0.
func Quantize(value, scale float64) uint16 {
	if scale <= 0 {
		scale = 1
	}
	v := math.Round(value * scale)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// EncodeFreePayload returns at most adv.PayloadLen bytes; the name is cut to
// whatever room is left.
func EncodeFreePayload(kind Kind, counter uint8, value float64, name string) []byte {
	b := make([]byte, payloadHeaderLen, adv.PayloadLen)
	b[0] = byte(kind)
	b[1] = counter
	binary.LittleEndian.PutUint32(b[2:6], math.Float32bits(float32(value)))
	room := adv.PayloadLen - payloadHeaderLen
	if len(name) > room {
		name = name[:room]
	}
	return append(b, name...)
}

// DecodeFreePayload reads back kind, counter and value. ok is false when p is
// shorter than the header.
func DecodeFreePayload(p []byte) (kind Kind, counter uint8, value float32, ok bool) {
	if len(p) < payloadHeaderLen {
		return KindUnknown, 0, 0, false
	}
	value = math.Float32frombits(binary.LittleEndian.Uint32(p[2:6]))
	return Kind(p[0]), p[1], value, true
}
