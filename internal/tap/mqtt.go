package tap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/vigliensoni/OSC-output-parser/internal/config"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Publisher mirrors messages to an MQTT topic. It satisfies the same Send
// contract as the UDP client, so it can ride alongside it in a MultiSender.
type Publisher struct {
	cfg     config.TapConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	client  mqtt.Client

	// Statistics
	connected         bool
	messagesPublished uint64
	publishErrors     uint64
	mu                sync.RWMutex
}

// PublisherStats contains tap statistics for monitoring
type PublisherStats struct {
	Connected         bool   `json:"connected"`
	MessagesPublished uint64 `json:"messages_published"`
	PublishErrors     uint64 `json:"publish_errors"`
}

// tapPayload is the JSON document published for each mirrored message.
type tapPayload struct {
	Address string        `json:"address"`
	Values  []interface{} `json:"values"`
	Time    time.Time     `json:"time"`
}

// NewPublisher creates a tap publisher. A missing client ID is filled with a
// random one so multiple taps can share a broker.
func NewPublisher(cfg config.TapConfig, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "osc-tap-" + uuid.NewString()[:8]
	}

	return &Publisher{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Connect establishes the connection to the MQTT broker.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.BrokerURL)
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.mu.Lock()
		p.connected = true
		p.mu.Unlock()

		p.logger.Info("Tap connected to MQTT broker",
			slog.String("broker", p.cfg.BrokerURL),
			slog.String("client_id", p.cfg.ClientID),
			slog.String("topic", p.cfg.Topic),
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()

		p.logger.Warn("Tap lost MQTT connection, will auto-reconnect",
			slog.String("broker", p.cfg.BrokerURL),
			slog.String("error", err.Error()),
		)
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	return nil
}

// Send publishes one mirrored message to the configured topic.
func (p *Publisher) Send(address string, args []osc.Argument) error {
	if !p.isConnected() {
		p.recordError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := buildPayload(address, args, time.Now().UTC())
	if err != nil {
		p.recordError()
		return fmt.Errorf("failed to marshal tap payload: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, byte(p.cfg.QoS), false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.recordError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.recordError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.messagesPublished++
	p.mu.Unlock()
	p.metrics.RecordTapPublished()

	p.logger.Debug("Message mirrored to tap",
		slog.String("topic", p.cfg.Topic),
		slog.String("address", address),
		slog.Int("size", len(payload)),
	)

	return nil
}

// Close disconnects from the MQTT broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("Tap disconnected from MQTT broker")
	}

	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// ClientID returns the effective MQTT client ID.
func (p *Publisher) ClientID() string {
	return p.cfg.ClientID
}

// GetStats returns current tap statistics
func (p *Publisher) GetStats() PublisherStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PublisherStats{
		Connected:         p.connected,
		MessagesPublished: p.messagesPublished,
		PublishErrors:     p.publishErrors,
	}
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) recordError() {
	p.mu.Lock()
	p.publishErrors++
	p.mu.Unlock()
	p.metrics.RecordTapError()
}

// buildPayload renders one mirrored message as JSON, with OSC arguments
// converted to their native Go values.
func buildPayload(address string, args []osc.Argument, at time.Time) ([]byte, error) {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		values[i] = arg.Value()
	}

	return json.Marshal(tapPayload{
		Address: address,
		Values:  values,
		Time:    at,
	})
}
