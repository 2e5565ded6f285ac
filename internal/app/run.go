package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tinygo.org/x/bluetooth"

	"eolos-node/internal/config"
	"eolos-node/internal/db"
	"eolos-node/internal/httpapi"
	"eolos-node/internal/mqtt"
	"eolos-node/internal/publisher"
	"eolos-node/internal/radio"
	"eolos-node/internal/sampler"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("app: config loaded",
		"device", cfg.DeviceName,
		"manufacturer", fmt.Sprintf("0x%04X", cfg.ManufacturerID),
		"adv_mode", cfg.AdvMode,
		"kind", cfg.MeasurementKind,
		"sample_interval", cfg.SampleInterval,
		"radio", cfg.RadioBackend,
		"sensor", cfg.SensorBackend,
		"mqtt_broker", cfg.MQTTBroker,
		"sqlite_path", cfg.SQLitePath,
		"http_addr", cfg.HTTPAddr,
	)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("app: close", "error", err)
			}
		}
	}()

	r := NewRadio(cfg, logger)
	src, srcClosers, err := NewSource(cfg, logger)
	closers = append(closers, srcClosers...)
	if err != nil {
		return err
	}

	var opts []NodeOption
	var journal *db.Journal
	if cfg.SQLitePath != "" {
		conn, err := db.Open(cfg.SQLitePath, logger)
		if err != nil {
			return err
		}
		closers = append(closers, conn)
		journal = db.NewJournal(conn)
		opts = append(opts, WithRecorder(journal))
		logger.Info("app: journal open", "path", cfg.SQLitePath)
	}

	if cfg.MQTTBroker != "" {
		client, err := mqtt.NewClient(cfg, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect()
		// The mirror is optional: the node advertises whether or not the
		// broker is reachable, and paho keeps retrying in the background.
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Connect(connectCtx); err != nil {
			logger.Warn("app: mqtt connect failed, continuing without mirror for now", "error", err)
		}
		cancel()
		opts = append(opts, WithMirror(client))
	}

	node := NewNode(cfg, r, src, logger, opts...)

	errCh := make(chan error, 2)
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		deps := httpapi.Deps{Node: node.Emitter(), Last: node.Publisher(), Logger: logger}
		if journal != nil {
			deps.Journal = journal
		}
		srv = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(deps), logger)
		go func() {
			logger.Info("app: http listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { errCh <- node.Run(runCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = <-errCh
	case runErr = <-errCh:
		cancel()
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		logger.Info("app: http shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("app: http shutdown", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return ctx.Err()
	}
	return runErr
}

// NewRadio returns the configured radio backend.
func NewRadio(cfg config.Config, logger *slog.Logger) radio.Radio {
	if cfg.RadioBackend == config.RadioLoopback {
		return radio.NewLoopback()
	}
	return radio.NewBluetooth(bluetooth.NewAdapter(cfg.HCIAdapter), logger)
}

// NewSource opens the configured sensor. The closers must be closed even when
// an error is returned.
func NewSource(cfg config.Config, logger *slog.Logger) (sampler.Source, []io.Closer, error) {
	params := sampler.Params{
		VRef:        cfg.ADCVRef,
		ADCMax:      cfg.ADCMax,
		Gain:        cfg.SensorGain,
		Sensitivity: cfg.SensorSensitivity,
	}

	switch cfg.SensorBackend {
	case config.SensorFixed:
		m, err := sampler.NewMedidor(sampler.FixedReader(cfg.FixedGasRaw), sampler.FixedReader(cfg.FixedRefRaw), params)
		return m, nil, err

	case config.SensorADS1115:
		bus, err := sampler.OpenBus()
		if err != nil {
			return nil, nil, err
		}
		closers := []io.Closer{bus}
		cell, err := sampler.OpenADS1115(bus, cfg.ADCAddress, cfg.ADCVRef, logger)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, cell)
		params = cell.Gas.Scale(params)
		logger.Debug("app: ads1115 scale", "vref", params.VRef, "adc_max", params.ADCMax)
		m, err := sampler.NewMedidor(cell.Gas, cell.Ref, params)
		return m, closers, err

	case config.SensorBME280:
		bus, err := sampler.OpenBus()
		if err != nil {
			return nil, nil, err
		}
		closers := []io.Closer{bus}
		climate, err := sampler.OpenClimate(bus, cfg.BME280Address)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, climate)
		if cfg.MeasurementKind == publisher.KindHumidity {
			return climate.Humidity(), closers, nil
		}
		return climate.Temperature(), closers, nil
	}
	return nil, nil, fmt.Errorf("app: unknown sensor backend %q", cfg.SensorBackend)
}
