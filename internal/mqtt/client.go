// Package mqtt mirrors what the node broadcasts to an MQTT broker, for
// bench setups where no phone is scanning.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"eolos-node/internal/config"
	"eolos-node/internal/publisher"
	"eolos-node/internal/utils"
)

var (
	ErrNotConnected = errors.New("mqtt: client not connected")
	ErrStopped      = errors.New("mqtt: client stopped")
)

const publishTimeout = 5 * time.Second

// Telemetry is the JSON body of an emission message.
type Telemetry struct {
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Kind      string    `json:"kind"`
	Unit      string    `json:"unit,omitempty"`
	Counter   int       `json:"counter"`
	Value     float64   `json:"value"`
	Major     *int      `json:"major,omitempty"`
	Minor     *int      `json:"minor,omitempty"`
	Frame     string    `json:"frame,omitempty"`
}

// Health is published retained so late subscribers see the node state.
type Health struct {
	Device      string    `json:"device"`
	LastSeen    time.Time `json:"last_seen"`
	Advertising bool      `json:"advertising"`
	Mode        string    `json:"mode"`
}

type Client struct {
	client mqtt.Client
	prefix string
	device string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if cfg.MQTTBroker == "" {
		return nil, errors.New("mqtt: no broker configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		prefix: cfg.MQTTTopicPrefix,
		device: cfg.DeviceName,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// The broker clears the retained health when the node drops off.
	opts.SetWill(HealthTopic(c.prefix, c.device), "", 1, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt: connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt: connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect waits for the first connection. It respects ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

// PublishEmission mirrors one published reading.
func (c *Client) PublishEmission(e publisher.Emission) error {
	topic, body, err := EmissionMessage(c.prefix, c.device, e)
	if err != nil {
		return err
	}
	return c.publish(topic, body, false)
}

func (c *Client) PublishHealth(h Health) error {
	h.Device = c.device
	if h.LastSeen.IsZero() {
		h.LastSeen = time.Now()
	}
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}
	return c.publish(HealthTopic(c.prefix, c.device), body, true)
}

func (c *Client) publish(topic string, body []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, 1, retained, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.logger.Debug("mqtt: published", "topic", topic, "bytes", len(body), "retained", retained)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect is idempotent. Connect fails with ErrStopped afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
	c.logger.Info("mqtt: disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func EmissionTopic(prefix, device string) string {
	return fmt.Sprintf("%s/nodes/%s/emissions", prefix, device)
}

func HealthTopic(prefix, device string) string {
	return fmt.Sprintf("%s/nodes/%s/health", prefix, device)
}

// EmissionMessage renders the topic and JSON body for e.
func EmissionMessage(prefix, device string, e publisher.Emission) (string, []byte, error) {
	t := Telemetry{
		Device:    device,
		Timestamp: e.At,
		Mode:      e.Mode.String(),
		Kind:      e.Kind.String(),
		Unit:      e.Kind.Unit(),
		Counter:   int(e.Counter),
		Value:     e.Value,
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	if e.Major != 0 || e.Minor != 0 {
		major, minor := int(e.Major), int(e.Minor)
		t.Major, t.Minor = &major, &minor
	}
	if e.Framed {
		t.Frame = utils.BytesToHex(e.Frame[:])
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return EmissionTopic(prefix, device), body, nil
}
