// Package publish sends unit outcomes to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/config"
)

const publishTimeout = 5 * time.Second

// ConnectTimeout bounds the initial broker dial.
var ConnectTimeout = 10 * time.Second

var ErrTimeout = errors.New("mqtt timeout")

// Message is the JSON body published for one unit.
type Message struct {
	RunID      string            `json:"run_id"`
	Station    string            `json:"station"`
	Port       string            `json:"port"`
	Role       string            `json:"role"`
	Kind       string            `json:"kind"`
	ChipNumber string            `json:"chip_number,omitempty"`
	FlashedID  string            `json:"flashed_id,omitempty"`
	Outcome    map[string]string `json:"outcome"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Publisher delivers outcome messages.
type Publisher interface {
	Publish(m Message) error
	Close()
}

// Nop discards messages.
type Nop struct{}

func (Nop) Publish(Message) error { return nil }
func (Nop) Close()                {}

// Topic is where a station's results go.
func Topic(prefix, station string) string {
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	return prefix + "/" + station + "/result"
}

// client is the part of mqtt.Client used here.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes at QoS 1 to Topic(prefix, station).
type MQTT struct {
	client client
	topic  string
	log    zerolog.Logger
}

// New returns a connected MQTT publisher, or a Nop when no broker is
// configured or the broker cannot be reached.
func New(cfg config.MQTTConfig, station string, log zerolog.Logger) Publisher {
	if !cfg.Enabled() {
		return Nop{}
	}
	p, err := Connect(cfg, station, log)
	if err != nil {
		log.Warn().Err(err).Msg("mqtt unavailable, outcomes will not be published")
		return Nop{}
	}
	return p
}

// Connect dials the broker.
func Connect(cfg config.MQTTConfig, station string, log zerolog.Logger) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "chipcheck-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(ConnectTimeout) {
		// Stops the background connect retries.
		c.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := tok.Error(); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	p := newMQTT(c, Topic(cfg.TopicPrefix, station), log)
	log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Str("topic", p.Topic()).Msg("mqtt connected")
	return p, nil
}

func newMQTT(c client, topic string, log zerolog.Logger) *MQTT {
	return &MQTT{client: c, topic: topic, log: log}
}

// Topic returns the publish topic.
func (p *MQTT) Topic() string { return p.topic }

// Publish sends m. A missing RunID or Timestamp is filled in.
func (p *MQTT) Publish(m Message) error {
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	tok := p.client.Publish(p.topic, 1, false, body)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: %w", p.topic, ErrTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	p.log.Debug().Str("topic", p.topic).Str("run_id", m.RunID).Msg("outcome published")
	return nil
}

// Close disconnects after in-flight messages drain.
func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
