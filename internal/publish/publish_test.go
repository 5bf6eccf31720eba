package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/chipcheck/internal/config"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	sent         []sent
	token        fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, sent{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestTopic(t *testing.T) {
	assert.Equal(t, "factory/bench-1/result", Topic("factory", "bench-1"))
	assert.Equal(t, "chipcheck/bench-1/result", Topic("", "bench-1"))
}

func TestNewWithoutBrokerIsNop(t *testing.T) {
	p := New(config.MQTTConfig{}, "bench-1", zerolog.Nop())
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(Message{}))
}

func TestNewUnreachableBrokerIsNop(t *testing.T) {
	old := ConnectTimeout
	ConnectTimeout = 200 * time.Millisecond
	t.Cleanup(func() { ConnectTimeout = old })

	p := New(config.MQTTConfig{Broker: "tcp://127.0.0.1:1"}, "bench-1", zerolog.Nop())
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(Message{}))
}

func TestPublishEncodesMessage(t *testing.T) {
	c := &fakeClient{}
	p := newMQTT(c, Topic("chipcheck", "bench-1"), zerolog.Nop())

	err := p.Publish(Message{
		Station:    "bench-1",
		Port:       "/dev/ttyUSB0",
		Role:       "master",
		Kind:       "green",
		ChipNumber: "101",
		Outcome:    map[string]string{"flashed": "true", "rssi": "-42"},
	})
	require.NoError(t, err)
	require.Len(t, c.sent, 1)
	assert.Equal(t, "chipcheck/bench-1/result", c.sent[0].topic)
	assert.Equal(t, byte(1), c.sent[0].qos)
	assert.False(t, c.sent[0].retained)

	var got Message
	require.NoError(t, json.Unmarshal(c.sent[0].payload, &got))
	assert.NotEmpty(t, got.RunID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "-42", got.Outcome["rssi"])
	assert.Equal(t, "101", got.ChipNumber)
}

func TestPublishKeepsRunID(t *testing.T) {
	c := &fakeClient{}
	p := newMQTT(c, "t", zerolog.Nop())

	require.NoError(t, p.Publish(Message{RunID: "run-1"}))
	var got Message
	require.NoError(t, json.Unmarshal(c.sent[0].payload, &got))
	assert.Equal(t, "run-1", got.RunID)
}

func TestPublishErrors(t *testing.T) {
	boom := errors.New("not connected")
	p := newMQTT(&fakeClient{token: fakeToken{err: boom}}, "t", zerolog.Nop())
	assert.ErrorIs(t, p.Publish(Message{}), boom)

	p = newMQTT(&fakeClient{token: fakeToken{timeout: true}}, "t", zerolog.Nop())
	assert.ErrorIs(t, p.Publish(Message{}), ErrTimeout)
}

func TestCloseDisconnects(t *testing.T) {
	c := &fakeClient{}
	newMQTT(c, "t", zerolog.Nop()).Close()
	assert.True(t, c.disconnected)
}
