//go:build !tinygo

package sampler

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Conditions is one BME280 reading.
type Conditions struct {
	Temperature float64 // °C
	Humidity    float64 // %rH
	Pressure    float64 // hPa
}

// Climate reads temperature and humidity from a BME280.
type Climate struct {
	dev *bmxx80.Dev
}

func OpenClimate(bus i2c.Bus, addr uint16) (*Climate, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("sampler: bmxx80 at 0x%02X: %w", addr, err)
	}
	return &Climate{dev: dev}, nil
}

func (c *Climate) Read() (Conditions, error) {
	var env physic.Env
	if err := c.dev.Sense(&env); err != nil {
		return Conditions{}, fmt.Errorf("sampler: sense: %w", err)
	}
	return FromEnv(env), nil
}

// FromEnv converts periph fixed-point units.
func FromEnv(env physic.Env) Conditions {
	return Conditions{
		Temperature: env.Temperature.Celsius(),
		// 0.00001 %rH per unit
		Humidity: float64(env.Humidity) / 100000.0,
		// nano Pascal to hPa
		Pressure: float64(env.Pressure) / 1e11,
	}
}

func (c *Climate) Temperature() Source {
	return SourceFunc(func() (float64, error) {
		r, err := c.Read()
		return r.Temperature, err
	})
}

func (c *Climate) Humidity() Source {
	return SourceFunc(func() (float64, error) {
		r, err := c.Read()
		return r.Humidity, err
	})
}

func (c *Climate) Close() error {
	return c.dev.Halt()
}
