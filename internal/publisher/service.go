package publisher

import (
	"eolos-node/internal/gatt"
)

// Environmental Sensing service and the SIG characteristics it carries.
const (
	environmentalSensing = 0x181A
	temperatureChar      = 0x2A6E
	humidityChar         = 0x2A6F
)

// measurementBase is the vendor UUID for kinds without a SIG
// characteristic; the last byte is replaced with the kind.
var measurementBase = gatt.UUID{
	0xfd, 0xa5, 0x06, 0x93, 0xa4, 0xe2, 0x4f, 0xb1,
	0xaf, 0xcf, 0xc6, 0xeb, 0x07, 0x64, 0x78, 0x00,
}

// CharacteristicUUID returns the measurement characteristic for kind.
func CharacteristicUUID(k Kind) gatt.UUID {
	switch k {
	case KindTemperature:
		return gatt.New16BitUUID(temperatureChar)
	case KindHumidity:
		return gatt.New16BitUUID(humidityChar)
	}
	u := measurementBase
	u[15] = byte(k)
	return u
}

// MeasurementService builds the Environmental Sensing service with one
// read/notify characteristic for kind.
func MeasurementService(k Kind) (*gatt.Service, *gatt.Characteristic) {
	svc := gatt.NewService("environmental sensing", gatt.New16BitUUID(environmentalSensing))
	c := gatt.NewCharacteristic(k.String(), CharacteristicUUID(k), gatt.PermRead|gatt.PermNotify, make([]byte, payloadHeaderLen))
	return svc, c
}
