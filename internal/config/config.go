package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"eolos-node/internal/adv"
	"eolos-node/internal/emitter"
	"eolos-node/internal/publisher"
)

const (
	RadioBluez    = "bluez"
	RadioLoopback = "loopback"

	SensorADS1115 = "ads1115"
	SensorBME280  = "bme280"
	SensorFixed   = "fixed"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DeviceName     string
	ManufacturerID uint16
	TxPower        int8

	AdvMode     publisher.Mode
	AdvInterval uint16
	BeaconUUID  [16]byte
	BeaconRSSI  int8

	MeasurementKind  publisher.Kind
	MeasurementScale float64
	SampleInterval   time.Duration
	ActivationPolicy emitter.ActivationPolicy

	RadioBackend string
	HCIAdapter   string

	SensorBackend     string
	ADCAddress        uint16
	ADCVRef           float64
	ADCMax            float64
	SensorGain        float64
	SensorSensitivity float64
	BME280Address     uint16
	FixedGasRaw       int32
	FixedRefRaw       int32

	// MQTTBroker empty disables the telemetry mirror.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	// SQLitePath empty disables the emission journal.
	SQLitePath string
	// HTTPAddr empty disables the status endpoints.
	HTTPAddr string
}

func LoadFromEnv() (Config, error) {
	appEnv := getenv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	deviceName := getenv("DEVICE_NAME", "Emisora01")

	manufacturerIDStr := getenv("MANUFACTURER_ID", "0x004C")
	manufacturerID, err := strconv.ParseUint(manufacturerIDStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MANUFACTURER_ID %q: %w", manufacturerIDStr, err)
	}

	txPowerStr := getenv("TX_POWER", "-12")
	txPower, err := strconv.ParseInt(txPowerStr, 10, 8)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TX_POWER %q: %w", txPowerStr, err)
	}

	advMode, err := publisher.ParseMode(getenv("ADV_MODE", string(publisher.ModeIBeacon)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADV_MODE: %w", err)
	}

	advIntervalStr := getenv("ADV_INTERVAL", strconv.Itoa(adv.DefaultInterval))
	advInterval, err := strconv.ParseUint(advIntervalStr, 10, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADV_INTERVAL %q: %w", advIntervalStr, err)
	}
	// 20 ms to 10.24 s in 0.625 ms ticks
	if advInterval < 0x20 || advInterval > 0x4000 {
		return Config{}, fmt.Errorf("ADV_INTERVAL must be between 32 and 16384 ticks, got %d", advInterval)
	}

	beaconUUIDStr := getenv("BEACON_UUID", "fda50693-a4e2-4fb1-afcf-c6eb07647825")
	beaconUUID, err := adv.ParseBeaconUUID(beaconUUIDStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BEACON_UUID: %w", err)
	}

	beaconRSSIStr := getenv("BEACON_RSSI_1M", "-59")
	beaconRSSI, err := strconv.ParseInt(beaconRSSIStr, 10, 8)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BEACON_RSSI_1M %q: %w", beaconRSSIStr, err)
	}

	kind, err := publisher.ParseKind(getenv("MEASUREMENT_KIND", "o3"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MEASUREMENT_KIND: %w", err)
	}

	scale, err := parseFloat("MEASUREMENT_SCALE", "1")
	if err != nil {
		return Config{}, err
	}
	if scale <= 0 {
		return Config{}, fmt.Errorf("MEASUREMENT_SCALE must be positive, got %v", scale)
	}

	sampleIntervalStr := getenv("SAMPLE_INTERVAL", "10s")
	sampleInterval, err := time.ParseDuration(sampleIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", sampleIntervalStr, err)
	}
	if sampleInterval <= 0 {
		return Config{}, fmt.Errorf("SAMPLE_INTERVAL must be positive, got %v", sampleInterval)
	}

	var policy emitter.ActivationPolicy
	switch p := getenv("ACTIVATION_POLICY", "always"); p {
	case "always":
		policy = emitter.ActivateAlways
	case "on-success":
		policy = emitter.ActivateOnSuccess
	default:
		return Config{}, fmt.Errorf("invalid ACTIVATION_POLICY %q (allowed: always, on-success)", p)
	}

	radioBackend := getenv("RADIO_BACKEND", RadioBluez)
	switch radioBackend {
	case RadioBluez, RadioLoopback:
	default:
		return Config{}, fmt.Errorf("invalid RADIO_BACKEND %q (allowed: bluez, loopback)", radioBackend)
	}
	hciAdapter := getenv("HCI_ADAPTER", "hci0")

	sensorBackend := getenv("SENSOR_BACKEND", SensorADS1115)
	switch sensorBackend {
	case SensorADS1115, SensorBME280, SensorFixed:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_BACKEND %q (allowed: ads1115, bme280, fixed)", sensorBackend)
	}
	if sensorBackend == SensorBME280 && kind != publisher.KindTemperature && kind != publisher.KindHumidity {
		return Config{}, fmt.Errorf("SENSOR_BACKEND bme280 measures temperature or humidity, not %s", kind)
	}

	adcAddressStr := getenv("ADC_I2C_ADDRESS", "0x48")
	adcAddress, err := strconv.ParseUint(adcAddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADC_I2C_ADDRESS %q: %w", adcAddressStr, err)
	}

	adcVRef, err := parseFloat("ADC_VREF", "3.3")
	if err != nil {
		return Config{}, err
	}
	adcMax, err := parseFloat("ADC_MAX", "4096")
	if err != nil {
		return Config{}, err
	}
	if adcMax <= 0 {
		return Config{}, fmt.Errorf("ADC_MAX must be positive, got %v", adcMax)
	}
	gain, err := parseFloat("SENSOR_GAIN", "499")
	if err != nil {
		return Config{}, err
	}
	sensitivity, err := parseFloat("SENSOR_SENSITIVITY", "-44.75")
	if err != nil {
		return Config{}, err
	}
	if gain == 0 || sensitivity == 0 {
		return Config{}, fmt.Errorf("SENSOR_GAIN and SENSOR_SENSITIVITY must be non-zero")
	}

	bme280AddressStr := getenv("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	fixedGasStr := getenv("FIXED_GAS_RAW", "2100")
	fixedGas, err := strconv.ParseInt(fixedGasStr, 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FIXED_GAS_RAW %q: %w", fixedGasStr, err)
	}
	fixedRefStr := getenv("FIXED_REF_RAW", "2048")
	fixedRef, err := strconv.ParseInt(fixedRefStr, 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FIXED_REF_RAW %q: %w", fixedRefStr, err)
	}

	mqttBroker := getenv("MQTT_BROKER", "")

	mqttPortStr := getenv("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := getenv("MQTT_CLIENT_ID", "eolos-node-"+strings.ToLower(deviceName))
	mqttTopicPrefix := strings.Trim(getenv("MQTT_TOPIC_PREFIX", "eolos"), "/")

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		DeviceName:        deviceName,
		ManufacturerID:    uint16(manufacturerID),
		TxPower:           int8(txPower),
		AdvMode:           advMode,
		AdvInterval:       uint16(advInterval),
		BeaconUUID:        beaconUUID,
		BeaconRSSI:        int8(beaconRSSI),
		MeasurementKind:   kind,
		MeasurementScale:  scale,
		SampleInterval:    sampleInterval,
		ActivationPolicy:  policy,
		RadioBackend:      radioBackend,
		HCIAdapter:        hciAdapter,
		SensorBackend:     sensorBackend,
		ADCAddress:        uint16(adcAddress),
		ADCVRef:           adcVRef,
		ADCMax:            adcMax,
		SensorGain:        gain,
		SensorSensitivity: sensitivity,
		BME280Address:     uint16(bme280Address),
		FixedGasRaw:       int32(fixedGas),
		FixedRefRaw:       int32(fixedRef),
		MQTTBroker:        mqttBroker,
		MQTTPort:          mqttPort,
		MQTTClientID:      mqttClientID,
		MQTTTopicPrefix:   mqttTopicPrefix,
		SQLitePath:        getenv("SQLITE_PATH", ""),
		HTTPAddr:          getenv("HTTP_ADDR", ""),
	}, nil
}

// getenv returns the trimmed value of key, or def when unset or blank.
func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseFloat(key, def string) (float64, error) {
	s := getenv(key, def)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
