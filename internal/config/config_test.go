package config

import (
	"log/slog"
	"testing"
	"time"

	"eolos-node/internal/emitter"
	"eolos-node/internal/publisher"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "DEVICE_NAME", "MANUFACTURER_ID", "TX_POWER",
	"ADV_MODE", "ADV_INTERVAL", "BEACON_UUID", "BEACON_RSSI_1M",
	"MEASUREMENT_KIND", "MEASUREMENT_SCALE", "SAMPLE_INTERVAL", "ACTIVATION_POLICY",
	"RADIO_BACKEND", "HCI_ADAPTER", "SENSOR_BACKEND", "ADC_I2C_ADDRESS",
	"ADC_VREF", "ADC_MAX", "SENSOR_GAIN", "SENSOR_SENSITIVITY", "BME280_ADDRESS",
	"FIXED_GAS_RAW", "FIXED_REF_RAW", "MQTT_BROKER", "MQTT_PORT",
	"MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX", "SQLITE_PATH", "HTTP_ADDR",
}

// clearEnv blanks every variable so the defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.DeviceName != "Emisora01" {
		t.Errorf("DeviceName = %q", got.DeviceName)
	}
	if got.ManufacturerID != 0x004C {
		t.Errorf("ManufacturerID = 0x%04X, want 0x004C", got.ManufacturerID)
	}
	if got.TxPower != -12 {
		t.Errorf("TxPower = %d, want -12", got.TxPower)
	}
	if got.AdvMode != publisher.ModeIBeacon || got.AdvInterval != 100 {
		t.Errorf("AdvMode = %q AdvInterval = %d", got.AdvMode, got.AdvInterval)
	}
	if got.BeaconUUID[0] != 0xfd || got.BeaconUUID[15] != 0x25 {
		t.Errorf("BeaconUUID = % X", got.BeaconUUID)
	}
	if got.BeaconRSSI != -59 {
		t.Errorf("BeaconRSSI = %d, want -59", got.BeaconRSSI)
	}
	if got.MeasurementKind != publisher.KindO3 || got.MeasurementScale != 1 {
		t.Errorf("MeasurementKind = %v MeasurementScale = %v", got.MeasurementKind, got.MeasurementScale)
	}
	if got.SampleInterval != 10*time.Second {
		t.Errorf("SampleInterval = %v, want 10s", got.SampleInterval)
	}
	if got.ActivationPolicy != emitter.ActivateAlways {
		t.Errorf("ActivationPolicy = %v, want always", got.ActivationPolicy)
	}
	if got.RadioBackend != RadioBluez || got.HCIAdapter != "hci0" {
		t.Errorf("RadioBackend = %q HCIAdapter = %q", got.RadioBackend, got.HCIAdapter)
	}
	if got.SensorBackend != SensorADS1115 || got.ADCAddress != 0x48 || got.BME280Address != 0x76 {
		t.Errorf("SensorBackend = %q ADCAddress = 0x%X BME280Address = 0x%X", got.SensorBackend, got.ADCAddress, got.BME280Address)
	}
	if got.ADCVRef != 3.3 || got.ADCMax != 4096 || got.SensorGain != 499 || got.SensorSensitivity != -44.75 {
		t.Errorf("sensor params = %v %v %v %v", got.ADCVRef, got.ADCMax, got.SensorGain, got.SensorSensitivity)
	}
	if got.MQTTBroker != "" || got.SQLitePath != "" || got.HTTPAddr != "" {
		t.Errorf("optional outputs enabled by default: %q %q %q", got.MQTTBroker, got.SQLitePath, got.HTTPAddr)
	}
	if got.MQTTPort != 1883 || got.MQTTClientID != "eolos-node-emisora01" || got.MQTTTopicPrefix != "eolos" {
		t.Errorf("mqtt = %d %q %q", got.MQTTPort, got.MQTTClientID, got.MQTTTopicPrefix)
	}
}

func TestLoadFromEnv_AppEnv_Valid(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
		want   string
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_NAME", "Emisora07")
	t.Setenv("MANUFACTURER_ID", "0x0059")
	t.Setenv("TX_POWER", "4")
	t.Setenv("ADV_MODE", "free")
	t.Setenv("MEASUREMENT_KIND", "temperature")
	t.Setenv("SENSOR_BACKEND", "bme280")
	t.Setenv("ACTIVATION_POLICY", "on-success")
	t.Setenv("RADIO_BACKEND", "loopback")
	t.Setenv("SAMPLE_INTERVAL", "250ms")
	t.Setenv("MQTT_BROKER", " broker.local ")
	t.Setenv("MQTT_TOPIC_PREFIX", "/lab/")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("HTTP_ADDR", "127.0.0.1:8081")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if got.DeviceName != "Emisora07" || got.ManufacturerID != 0x0059 || got.TxPower != 4 {
		t.Errorf("identity = %q 0x%04X %d", got.DeviceName, got.ManufacturerID, got.TxPower)
	}
	if got.AdvMode != publisher.ModeFree || got.MeasurementKind != publisher.KindTemperature {
		t.Errorf("AdvMode = %q MeasurementKind = %v", got.AdvMode, got.MeasurementKind)
	}
	if got.ActivationPolicy != emitter.ActivateOnSuccess {
		t.Errorf("ActivationPolicy = %v", got.ActivationPolicy)
	}
	if got.RadioBackend != RadioLoopback || got.SensorBackend != SensorBME280 {
		t.Errorf("backends = %q %q", got.RadioBackend, got.SensorBackend)
	}
	if got.SampleInterval != 250*time.Millisecond {
		t.Errorf("SampleInterval = %v", got.SampleInterval)
	}
	if got.MQTTBroker != "broker.local" || got.MQTTTopicPrefix != "lab" {
		t.Errorf("mqtt = %q %q", got.MQTTBroker, got.MQTTTopicPrefix)
	}
	if got.SQLitePath != ":memory:" || got.HTTPAddr != "127.0.0.1:8081" {
		t.Errorf("SQLitePath = %q HTTPAddr = %q", got.SQLitePath, got.HTTPAddr)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "uppercase app env", key: "APP_ENV", value: "DEV"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "manufacturer overflow", key: "MANUFACTURER_ID", value: "0x10000"},
		{name: "tx power overflow", key: "TX_POWER", value: "200"},
		{name: "adv mode", key: "ADV_MODE", value: "mesh"},
		{name: "adv interval too short", key: "ADV_INTERVAL", value: "10"},
		{name: "beacon uuid", key: "BEACON_UUID", value: "not-a-uuid"},
		{name: "rssi", key: "BEACON_RSSI_1M", value: "x"},
		{name: "kind", key: "MEASUREMENT_KIND", value: "pm10"},
		{name: "scale zero", key: "MEASUREMENT_SCALE", value: "0"},
		{name: "sample interval", key: "SAMPLE_INTERVAL", value: "soon"},
		{name: "sample interval negative", key: "SAMPLE_INTERVAL", value: "-1s"},
		{name: "activation policy", key: "ACTIVATION_POLICY", value: "never"},
		{name: "radio backend", key: "RADIO_BACKEND", value: "usb"},
		{name: "sensor backend", key: "SENSOR_BACKEND", value: "dht22"},
		{name: "bme280 for gas", key: "SENSOR_BACKEND", value: "bme280"},
		{name: "adc address", key: "ADC_I2C_ADDRESS", value: "zz"},
		{name: "adc max zero", key: "ADC_MAX", value: "0"},
		{name: "gain zero", key: "SENSOR_GAIN", value: "0"},
		{name: "vref", key: "ADC_VREF", value: "3,3"},
		{name: "mqtt port", key: "MQTT_PORT", value: "abc"},
		{name: "fixed raw", key: "FIXED_GAS_RAW", value: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "DeBuG", want: slog.LevelDebug},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
