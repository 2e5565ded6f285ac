// Package publisher puts sampled values on the air through the emitter.
package publisher

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"eolos-node/internal/adv"
	"eolos-node/internal/emitter"
	"eolos-node/internal/gatt"
)

// Mode selects how readings are advertised.
type Mode string

const (
	ModeIBeacon     Mode = "ibeacon"
	ModeFree        Mode = "free"
	ModeConnectable Mode = "connectable"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIBeacon, ModeFree, ModeConnectable:
		return m, nil
	default:
		return "", fmt.Errorf("unknown advertising mode %q (allowed: ibeacon, free, connectable)", s)
	}
}

var ErrInvalidValue = errors.New("publisher: value is not finite")

// Emitter is the part of *emitter.Emitter the publisher drives.
type Emitter interface {
	StartIBeacon(b adv.Beacon) error
	StartFreePayload(payload []byte) error
	StartConnectable(services ...*gatt.Service) error
	Mode() emitter.Mode
	Identity() emitter.Identity
	Frame() (adv.Frame, bool)
}

type Config struct {
	Mode          Mode
	Kind          Kind
	BeaconUUID    [16]byte
	MeasuredPower int8
	// Scale multiplies values before they are rounded into the iBeacon
	// minor. Zero means 1.
	Scale float64
}

// Emission records one published reading.
type Emission struct {
	Kind    Kind
	Counter uint8
	Value   float64
	Mode    emitter.Mode
	Major   uint16
	Minor   uint16
	Frame   adv.Frame
	// Framed is false in connectable mode, where no manufacturer frame is
	// advertised.
	Framed bool
	At     time.Time
}

type Publisher struct {
	em      Emitter
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	service *gatt.Service
	char    *gatt.Characteristic

	mu        sync.Mutex
	counter   uint8
	last      Emission
	published bool
}

func New(em Emitter, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeIBeacon
	}
	p := &Publisher{em: em, cfg: cfg, logger: logger, now: time.Now}
	if cfg.Mode == ModeConnectable {
		p.service, p.char = MeasurementService(cfg.Kind)
	}
	return p
}

// Service returns the measurement service used in connectable mode, or nil.
func (p *Publisher) Service() (*gatt.Service, *gatt.Characteristic) {
	return p.service, p.char
}

// Publish advertises value. The counter advances only when the emitter
// accepted the reading.
func (p *Publisher) Publish(value float64) (Emission, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Emission{}, ErrInvalidValue
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.counter + 1
	ev := Emission{Kind: p.cfg.Kind, Counter: next, Value: value, At: p.now()}

	var err error
	switch p.cfg.Mode {
	case ModeIBeacon:
		b := EncodeBeacon(p.cfg.BeaconUUID, p.cfg.MeasuredPower, p.cfg.Kind, next, value, p.cfg.Scale)
		ev.Major, ev.Minor = b.Major, b.Minor
		err = p.em.StartIBeacon(b)
	case ModeFree:
		err = p.em.StartFreePayload(EncodeFreePayload(p.cfg.Kind, next, value, p.em.Identity().Name))
	case ModeConnectable:
		p.char.SetValue(EncodeFreePayload(p.cfg.Kind, next, value, "")[:payloadHeaderLen])
		if p.em.Mode() != emitter.ModeConnectable {
			err = p.em.StartConnectable(p.service)
		}
	default:
		err = fmt.Errorf("publisher: mode %q not supported", p.cfg.Mode)
	}
	if err != nil {
		return Emission{}, fmt.Errorf("publisher: publish %s: %w", p.cfg.Kind, err)
	}

	ev.Mode = p.em.Mode()
	ev.Frame, ev.Framed = p.em.Frame()
	p.counter = next
	p.last = ev
	p.published = true
	p.logger.Debug("publisher: reading published",
		"kind", ev.Kind,
		"counter", ev.Counter,
		"value", ev.Value,
		"mode", ev.Mode,
	)
	return ev, nil
}

// Last returns the most recent successful emission.
func (p *Publisher) Last() (Emission, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.published
}
