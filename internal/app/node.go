// Package app runs the node: sample, publish, drain connection events.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eolos-node/internal/config"
	"eolos-node/internal/emitter"
	"eolos-node/internal/gatt"
	"eolos-node/internal/mqtt"
	"eolos-node/internal/publisher"
	"eolos-node/internal/radio"
	"eolos-node/internal/sampler"
)

// Recorder journals what the node did. *db.Journal satisfies it.
type Recorder interface {
	RecordEmission(ctx context.Context, e publisher.Emission) error
	RecordConnEvent(ctx context.Context, ev emitter.ConnEvent) error
}

// Mirror forwards emissions off the device. *mqtt.Client satisfies it.
type Mirror interface {
	PublishEmission(e publisher.Emission) error
	PublishHealth(h mqtt.Health) error
}

type NodeOption func(*Node)

func WithRecorder(r Recorder) NodeOption {
	return func(n *Node) { n.recorder = r }
}

func WithMirror(m Mirror) NodeOption {
	return func(n *Node) { n.mirror = m }
}

// Node ties one sampler to one emitter. Everything it does happens on the
// goroutine that calls Run (or Start and Step).
type Node struct {
	cfg       config.Config
	logger    *slog.Logger
	em        *emitter.Emitter
	source    sampler.Source
	pub       *publisher.Publisher
	recorder  Recorder
	mirror    Mirror
	connected map[radio.Handle]radio.Connection
}

func NewNode(cfg config.Config, r radio.Radio, src sampler.Source, logger *slog.Logger, opts ...NodeOption) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	em := emitter.New(r,
		emitter.Identity{
			Name:           cfg.DeviceName,
			ManufacturerID: cfg.ManufacturerID,
			TxPower:        cfg.TxPower,
		},
		emitter.WithLogger(logger),
		emitter.WithInterval(cfg.AdvInterval),
		emitter.WithActivationPolicy(cfg.ActivationPolicy),
	)
	pub := publisher.New(em, publisher.Config{
		Mode:          cfg.AdvMode,
		Kind:          cfg.MeasurementKind,
		BeaconUUID:    cfg.BeaconUUID,
		MeasuredPower: cfg.BeaconRSSI,
		Scale:         cfg.MeasurementScale,
	}, logger)

	n := &Node{
		cfg:       cfg,
		logger:    logger,
		em:        em,
		source:    src,
		pub:       pub,
		connected: make(map[radio.Handle]radio.Connection),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Node) Emitter() *emitter.Emitter { return n.em }

func (n *Node) Publisher() *publisher.Publisher { return n.pub }

// Start powers the radio on and, in connectable mode, registers the
// measurement service before the first advertisement.
func (n *Node) Start() error {
	if err := n.em.PowerOnWithCallbacks(n.onConnected, n.onDisconnected); err != nil {
		return err
	}
	if svc, char := n.pub.Service(); svc != nil {
		if !n.em.RegisterAndActivate(svc, []*gatt.Characteristic{char}) {
			n.logger.Warn("app: measurement service unavailable, advertising continues", "service", svc.Name)
		}
	}
	return nil
}

// Step takes one sample and puts it on the air. A failed sample or publish
// skips the cycle; journal and mirror failures are only logged.
func (n *Node) Step(ctx context.Context) (publisher.Emission, error) {
	v, err := n.source.Sample()
	if err != nil {
		return publisher.Emission{}, fmt.Errorf("sample: %w", err)
	}
	e, err := n.pub.Publish(v)
	if err != nil {
		return publisher.Emission{}, err
	}

	if n.recorder != nil {
		if err := n.recorder.RecordEmission(ctx, e); err != nil {
			n.logger.Warn("app: journal write failed", "error", err)
		}
	}
	if n.mirror != nil {
		if err := n.mirror.PublishEmission(e); err != nil {
			n.logger.Debug("app: mirror skipped", "error", err)
		}
	}
	return e, nil
}

// HandleEvent runs the connection callbacks for ev and journals it.
func (n *Node) HandleEvent(ctx context.Context, ev emitter.ConnEvent) {
	n.em.Handle(ev)
	if n.recorder != nil {
		if err := n.recorder.RecordConnEvent(ctx, ev); err != nil {
			n.logger.Warn("app: journal write failed", "error", err)
		}
	}
}

// Run starts the node and loops until ctx is done, then stops advertising.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}
	defer func() {
		if err := n.em.StopAdvertising(); err != nil {
			n.logger.Warn("app: stop advertising", "error", err)
		}
		n.reportHealth()
	}()

	n.cycle(ctx)
	ticker := time.NewTicker(n.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-n.em.Events():
			n.HandleEvent(ctx, ev)
		case <-ticker.C:
			n.cycle(ctx)
		}
	}
}

func (n *Node) cycle(ctx context.Context) {
	if _, err := n.Step(ctx); err != nil {
		if errors.Is(err, publisher.ErrInvalidValue) {
			n.logger.Warn("app: reading discarded", "error", err)
		} else {
			n.logger.Error("app: cycle failed", "error", err)
		}
	}
	n.reportHealth()
}

func (n *Node) reportHealth() {
	if n.mirror == nil {
		return
	}
	h := mqtt.Health{Advertising: n.em.IsAdvertising(), Mode: n.em.Mode().String()}
	if err := n.mirror.PublishHealth(h); err != nil {
		n.logger.Debug("app: health skipped", "error", err)
	}
}

func (n *Node) onConnected(h radio.Handle) {
	c, ok := n.em.Connection(h)
	if !ok {
		n.logger.Debug("app: connection gone before handling", "handle", h)
		return
	}
	n.connected[h] = c
	n.logger.Info("app: peer connected", "handle", h, "address", c.Address)
}

func (n *Node) onDisconnected(h radio.Handle, reason uint8) {
	c, ok := n.connected[h]
	delete(n.connected, h)
	attrs := []any{"handle", h, "reason", fmt.Sprintf("0x%02X", reason)}
	if ok {
		attrs = append(attrs, "address", c.Address, "duration", time.Since(c.ConnectedAt).Round(time.Second))
	}
	n.logger.Info("app: peer disconnected", attrs...)
}

// Peers returns the connections the node has seen open and not yet closed.
func (n *Node) Peers() int {
	return len(n.connected)
}
