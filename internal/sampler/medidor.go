// Package sampler turns raw sensor readings into measurements.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var ErrNoReader = errors.New("sampler: reader not configured")

// Params describes the electrochemical cell front end. The defaults match
// the ozone board: 12-bit ADC at 3.3 V, 499 Ω transimpedance gain and the
// sensitivity printed on the cell's label, in nA/ppm.
type Params struct {
	VRef        float64
	ADCMax      float64
	Gain        float64
	Sensitivity float64
}

var DefaultParams = Params{
	VRef:        3.3,
	ADCMax:      4096,
	Gain:        499,
	Sensitivity: -44.75,
}

func (p Params) validate() error {
	switch {
	case p.ADCMax <= 0:
		return fmt.Errorf("sampler: adc max must be positive, got %v", p.ADCMax)
	case p.Gain == 0 || p.Sensitivity == 0:
		return fmt.Errorf("sampler: gain and sensitivity must be non-zero")
	}
	return nil
}

// Volts converts a raw count to volts.
func (p Params) Volts(raw int32) float64 {
	return float64(raw) * p.VRef / p.ADCMax
}

// PPM is the gas concentration for a working/reference electrode pair.
func (p Params) PPM(gas, ref int32) float64 {
	delta := p.Volts(gas) - p.Volts(ref)
	return math.Abs(delta / (p.Gain * p.Sensitivity * 1e-6))
}

// RawReader returns one ADC conversion in counts.
type RawReader interface {
	ReadRaw() (int32, error)
}

// Reading is the last successful sample with its inputs.
type Reading struct {
	Value  float64
	GasRaw int32
	RefRaw int32
	At     time.Time
}

// Medidor samples a gas cell through two ADC channels.
type Medidor struct {
	Gas    RawReader
	Ref    RawReader
	Params Params

	mu   sync.Mutex
	last Reading
	now  func() time.Time
}

func NewMedidor(gas, ref RawReader, p Params) (*Medidor, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Medidor{Gas: gas, Ref: ref, Params: p}, nil
}

// Sample reads both channels and returns the concentration in ppm. A failed
// read leaves Last unchanged.
func (m *Medidor) Sample() (float64, error) {
	if m.Gas == nil || m.Ref == nil {
		return 0, ErrNoReader
	}
	gas, err := m.Gas.ReadRaw()
	if err != nil {
		return 0, fmt.Errorf("sampler: read gas channel: %w", err)
	}
	ref, err := m.Ref.ReadRaw()
	if err != nil {
		return 0, fmt.Errorf("sampler: read reference channel: %w", err)
	}

	v := m.Params.PPM(gas, ref)
	now := time.Now
	if m.now != nil {
		now = m.now
	}

	m.mu.Lock()
	m.last = Reading{Value: v, GasRaw: gas, RefRaw: ref, At: now()}
	m.mu.Unlock()
	return v, nil
}

func (m *Medidor) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Source is anything that yields one measurement per call.
type Source interface {
	Sample() (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (float64, error)

func (f SourceFunc) Sample() (float64, error) { return f() }
