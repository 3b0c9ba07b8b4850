package connectors

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// recordingClient 只实现连接器用到的方法
type recordingClient struct {
	mqtt.Client
	connectErr   error
	publishErr   error
	published    []publishedMessage
	disconnected bool
}

func (c *recordingClient) Connect() mqtt.Token { return doneToken{err: c.connectErr} }

func (c *recordingClient) Disconnect(quiesce uint) { c.disconnected = true }

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c.publishErr != nil {
		return doneToken{err: c.publishErr}
	}
	c.published = append(c.published, publishedMessage{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func TestMQTTConnector_Publish(t *testing.T) {
	client := &recordingClient{}
	mc := newMQTTConnectorWithClient(&MQTTConfig{Broker: "tcp://localhost:1883", Topic: "query-events", QoS: 1}, client)

	assert.False(t, mc.IsConnected())
	assert.Error(t, mc.Publish(map[string]interface{}{"entity": "User"}))

	require.NoError(t, mc.Connect())
	assert.True(t, mc.IsConnected())

	require.NoError(t, mc.Publish(map[string]interface{}{"entity": "User"}))
	require.Len(t, client.published, 1)
	assert.Equal(t, "query-events", client.published[0].topic)
	assert.Equal(t, byte(1), client.published[0].qos)
	assert.JSONEq(t, `{"entity":"User"}`, string(client.published[0].payload))

	stats := mc.GetStatistics()
	assert.Equal(t, int64(1), stats.MessagesSent)
	assert.Equal(t, int64(len(client.published[0].payload)), stats.BytesSent)
	assert.False(t, stats.ConnectedAt.IsZero())

	mc.Disconnect()
	assert.True(t, client.disconnected)
	assert.False(t, mc.IsConnected())
}

func TestMQTTConnector_Failures(t *testing.T) {
	client := &recordingClient{connectErr: errors.New("refused")}
	mc := newMQTTConnectorWithClient(&MQTTConfig{Broker: "tcp://localhost:1883", Topic: "query-events"}, client)

	assert.ErrorContains(t, mc.Connect(), "refused")
	assert.False(t, mc.IsConnected())
	assert.Equal(t, "refused", mc.GetStatistics().LastError)

	client.connectErr = nil
	client.publishErr = errors.New("timeout")
	require.NoError(t, mc.Connect())
	assert.Error(t, mc.Publish("payload"))
	assert.Equal(t, "timeout", mc.GetStatistics().LastError)
	assert.Equal(t, int64(0), mc.GetStatistics().MessagesSent)
}

func TestMQTTConnector_ConnectionCallbacks(t *testing.T) {
	mc := newMQTTConnectorWithClient(&MQTTConfig{Broker: "tcp://localhost:1883"}, &recordingClient{})

	mc.onConnected(nil)
	assert.True(t, mc.IsConnected())

	mc.onConnectionLost(nil, errors.New("broker gone"))
	assert.False(t, mc.IsConnected())
	stats := mc.GetStatistics()
	assert.Equal(t, 1, stats.ReconnectCount)
	assert.Equal(t, "broker gone", stats.LastError)
}
