//go:build !tinygo

package sampler

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// OpenBus initializes the host drivers and opens the default I²C bus,
// usually /dev/i2c-1.
func OpenBus() (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("sampler: host init: %w", err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("sampler: open i2c bus: %w", err)
	}
	return bus, nil
}

// Cell is the gas cell wired to an ADS1115: working electrode on channel 0,
// reference on channel 1.
type Cell struct {
	Gas ADCReader
	Ref ADCReader

	pins []analog.PinADC
}

// OpenADS1115 configures both cell channels at the given full-scale voltage.
func OpenADS1115(bus i2c.Bus, addr uint16, vref float64, logger *slog.Logger) (*Cell, error) {
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("sampler: ads1115 at 0x%02X: %w", addr, err)
	}

	maxV := physic.ElectricPotential(vref * float64(physic.Volt))
	gas, err := dev.PinForChannel(ads1x15.Channel0, maxV, 8*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("sampler: gas channel: %w", err)
	}
	ref, err := dev.PinForChannel(ads1x15.Channel1, maxV, 8*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		_ = gas.Halt()
		return nil, fmt.Errorf("sampler: reference channel: %w", err)
	}

	logger.Info("sampler: ads1115 ready", "addr", fmt.Sprintf("0x%02X", addr), "vref", vref)
	return &Cell{
		Gas:  ADCReader{Pin: gas},
		Ref:  ADCReader{Pin: ref},
		pins: []analog.PinADC{gas, ref},
	}, nil
}

func (c *Cell) Close() error {
	var errs []error
	for _, p := range c.pins {
		errs = append(errs, p.Halt())
	}
	return errors.Join(errs...)
}
