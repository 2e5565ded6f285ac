package publisher

import (
	"fmt"
	"strings"
)

// Kind identifies what a reading measures. It travels in the high byte of
// the iBeacon major and in the first free-payload byte.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindO3
	KindCO2
	KindTemperature
	KindHumidity
	KindNoise
)

var kindNames = map[Kind]string{
	KindO3:          "o3",
	KindCO2:         "co2",
	KindTemperature: "temperature",
	KindHumidity:    "humidity",
	KindNoise:       "noise",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Unit is the unit values of this kind are expressed in.
func (k Kind) Unit() string {
	switch k {
	case KindO3, KindCO2:
		return "ppm"
	case KindTemperature:
		return "celsius"
	case KindHumidity:
		return "percent"
	case KindNoise:
		return "db"
	default:
		return ""
	}
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown measurement kind %q (allowed: o3, co2, temperature, humidity, noise)", s)
}
