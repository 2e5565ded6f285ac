package gatt

import "errors"

var (
	ErrServiceActive     = errors.New("gatt: service already activated")
	ErrNilCharacteristic = errors.New("gatt: nil characteristic")
)
