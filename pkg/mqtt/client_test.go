package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"ro/v1/ro/response/V1", "ro/v1/ro/response/V1", true},
		{"ro/v1/ro/response/+", "ro/v1/ro/response/V1", true},
		{"ro/v1/ro/response/+", "ro/v1/ro/response/V1/extra", false},
		{"ro/v1/ro/+/V1", "ro/v1/ro/request/V1", true},
		{"ro/v1/#", "ro/v1/schedule/status/V9", true},
		{"ro/v1/ro/request/+", "ro/v1/ro/response/V1", false},
		{"ro/v1/ro/request/V1", "ro/v1/ro/request/V2", false},
		{"ro/v1/ro/request/+/+", "ro/v1/ro/request/V1", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"->"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilter(t *testing.T) {
	assert.Equal(t, "ro/v1/ro/request/+", topicFilter("$share/ro-processor/ro/v1/ro/request/+"))
	assert.Equal(t, "ro/v1/ro/request/+", topicFilter("ro/v1/ro/request/+"))
	assert.Equal(t, "$share/broken", topicFilter("$share/broken"))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "localhost"})
	require.Error(t, err)

	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ro-processor-test"}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, uint16(60), cfg.KeepAlive)
}

func TestOperationsBeforeStart(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, c.Publish(ctx, "t", 1, false, nil), ErrNotStarted)
	assert.ErrorIs(t, c.Subscribe(ctx, "t", 1, nil), ErrNotStarted)
	assert.ErrorIs(t, c.AwaitConnection(ctx), ErrNotStarted)
}

func TestRouterDispatchesInOrder(t *testing.T) {
	c := &pahoClient{cfg: &ClientConfig{}, baseCtx: context.Background()}

	var got []string
	c.subscriptions.Store("$share/g/ro/v1/ro/response/+", subscriptionEntry{
		topic:  "$share/g/ro/v1/ro/response/+",
		filter: "ro/v1/ro/response/+",
		handler: func(_ context.Context, _ string, payload []byte) {
			got = append(got, string(payload))
		},
	})

	for _, p := range []string{"first", "second", "third"} {
		ok, err := c.router(paho.PublishReceived{Packet: &paho.Publish{Topic: "ro/v1/ro/response/V1", Payload: []byte(p)}})
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, _ = c.router(paho.PublishReceived{Packet: &paho.Publish{Topic: "ro/v1/other/V1", Payload: []byte("ignored")}})

	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestWillMessage(t *testing.T) {
	c := &pahoClient{cfg: &ClientConfig{}}
	assert.Nil(t, c.willMessage())

	c.cfg.WillTopic = "ro/v1/processor/online"
	c.cfg.WillPayload = []byte("offline")
	c.cfg.WillQoS = 1
	w := c.willMessage()
	require.NotNil(t, w)
	assert.Equal(t, "ro/v1/processor/online", w.Topic)
	assert.Equal(t, byte(1), w.QoS)
}
