package publish

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

// MQTTConfig holds broker settings for the bridge's outgoing topic.
type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker"`
	Topic          string        `mapstructure:"topic"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	UseTLS         bool          `mapstructure:"tls"`
	TLSInsecure    bool          `mapstructure:"tls_insecure"`
	Enabled        bool          `mapstructure:"enabled"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MQTT publishes records as JSON documents to a single topic, QoS 0,
// non-retained. The underlying client reconnects on its own; a publish
// during an outage fails fast and is dropped.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

// NewMQTT connects to the broker and returns a ready publisher. The initial
// connect is synchronous so a misconfigured broker fails at startup rather
// than on the first frame.
func NewMQTT(cfg MQTTConfig, log *zap.Logger) (*MQTT, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "enderbridge"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetKeepAlive(60 * time.Second).
		SetWriteTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: cfg.TLSInsecure})
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to MQTT broker", zap.String("broker", cfg.BrokerURL))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost; client will reconnect", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, err)
	}

	return &MQTT{
		client:  client,
		topic:   cfg.Topic,
		timeout: cfg.ConnectTimeout,
		log:     log,
	}, nil
}

// Publish sends one record. Returns the broker error, if any; the caller
// logs and moves on.
func (p *MQTT) Publish(ctx context.Context, rec domain.Record) error {
	payload, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	case <-time.After(p.timeout):
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
}

// Close disconnects from the broker, allowing a short drain for in-flight
// messages.
func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
