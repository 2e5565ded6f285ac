package sampler

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// FixedReader always returns the same count. It stands in for the ADC on
// hosts without one.
type FixedReader int32

func (r FixedReader) ReadRaw() (int32, error) { return int32(r), nil }

// SequenceReader cycles through a fixed list of counts.
type SequenceReader struct {
	Values []int32
	next   atomic.Uint64
}

func (r *SequenceReader) ReadRaw() (int32, error) {
	if len(r.Values) == 0 {
		return 0, ErrNoReader
	}
	i := r.next.Add(1) - 1
	return r.Values[i%uint64(len(r.Values))], nil
}

// ADCReader reads counts from a periph analog pin. The counts are on the
// pin's own scale; pass the Params through Scale before building a Medidor.
type ADCReader struct {
	Pin analog.PinADC
}

func (r ADCReader) ReadRaw() (int32, error) {
	s, err := r.Pin.Read()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.Pin, err)
	}
	return s.Raw, nil
}

// Scale returns p with VRef and ADCMax set from the pin's full-scale sample,
// so that Params.Volts(raw) matches the pin's own voltage. The ADS1115 reports
// signed 16-bit codes against the PGA range, not the supply. p is returned
// unchanged when the pin does not report a usable range.
func (r ADCReader) Scale(p Params) Params {
	_, hi := r.Pin.Range()
	if hi.Raw <= 0 || hi.V <= 0 {
		return p
	}
	p.VRef = float64(hi.V) / float64(physic.Volt)
	p.ADCMax = float64(hi.Raw) + 1
	return p
}
