//go:build tinygo

// Firmware for the nRF52 sensor board. It alternates an iBeacon carrying the
// ozone reading with a free-payload advertisement carrying the BME280
// temperature, the way the phone app expects to find the node.
package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/lmittmann/tint"
	"tinygo.org/x/bluetooth"
	"tinygo.org/x/drivers/bme280"

	"eolos-node/internal/adv"
	"eolos-node/internal/emitter"
	"eolos-node/internal/publisher"
	"eolos-node/internal/radio"
	"eolos-node/internal/sampler"
)

const (
	deviceName     = "Emisora01"
	txPower        = -12
	measuredPower  = -59
	cycle          = 10 * time.Second
	beaconDuration = 5 * time.Second
)

var beaconUUID = [16]byte{
	0xfd, 0xa5, 0x06, 0x93, 0xa4, 0xe2, 0x4f, 0xb1,
	0xaf, 0xcf, 0xc6, 0xeb, 0x07, 0x64, 0x78, 0x25,
}

// adcReader reads a SAADC channel. TinyGo scales every conversion to 16 bits.
type adcReader struct {
	adc machine.ADC
}

func (r adcReader) ReadRaw() (int32, error) {
	return int32(r.adc.Get()), nil
}

func newADC(pin machine.Pin) adcReader {
	a := machine.ADC{Pin: pin}
	a.Configure(machine.ADCConfig{})
	return adcReader{adc: a}
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{})
	time.Sleep(1500 * time.Millisecond)

	logger := slog.New(tint.NewHandler(machine.Serial, &tint.Options{
		Level:   slog.LevelDebug,
		NoColor: true,
	})).With("device", deviceName)

	machine.InitADC()
	params := sampler.DefaultParams
	params.ADCMax = 65536
	medidor, err := sampler.NewMedidor(newADC(machine.A0), newADC(machine.A1), params)
	if err != nil {
		halt(logger, "sampler", err)
	}

	if err := machine.I2C0.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		logger.Warn("firmware: i2c configure", "error", err)
	}
	climate := bme280.New(machine.I2C0)
	climate.Configure()
	if !climate.Connected() {
		logger.Warn("firmware: bme280 not found, free payload carries zeros")
	}

	em := emitter.New(radio.NewBluetooth(bluetooth.DefaultAdapter, logger),
		emitter.Identity{Name: deviceName, ManufacturerID: adv.AppleCompanyID, TxPower: txPower},
		emitter.WithLogger(logger),
	)
	if err := em.PowerOnWithCallbacks(
		func(h radio.Handle) { logger.Info("firmware: connected", "handle", h) },
		func(h radio.Handle, reason uint8) { logger.Info("firmware: disconnected", "handle", h, "reason", reason) },
	); err != nil {
		halt(logger, "power on", err)
	}

	ozone := publisher.New(em, publisher.Config{
		Mode:          publisher.ModeIBeacon,
		Kind:          publisher.KindO3,
		BeaconUUID:    beaconUUID,
		MeasuredPower: measuredPower,
		Scale:         100,
	}, logger)
	temperature := publisher.New(em, publisher.Config{
		Mode: publisher.ModeFree,
		Kind: publisher.KindTemperature,
	}, logger)

	for {
		em.Dispatch()

		if v, err := medidor.Sample(); err != nil {
			logger.Error("firmware: sample", "error", err)
		} else if _, err := ozone.Publish(v); err != nil {
			logger.Error("firmware: publish ozone", "error", err)
		}
		time.Sleep(beaconDuration)

		var celsius float64
		if milli, err := climate.ReadTemperature(); err == nil {
			celsius = float64(milli) / 1000
		}
		if _, err := temperature.Publish(celsius); err != nil {
			logger.Error("firmware: publish temperature", "error", err)
		}
		time.Sleep(cycle - beaconDuration)
	}
}

func halt(logger *slog.Logger, step string, err error) {
	logger.Error("firmware: fatal", "step", step, "error", err)
	for {
		time.Sleep(time.Second)
	}
}
