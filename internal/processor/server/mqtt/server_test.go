package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/remoteops/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/remoteops/internal/pkg/partition"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	pkgmqtt "github.com/autopeer-io/remoteops/pkg/mqtt"
	"github.com/autopeer-io/remoteops/pkg/mqtt/topic"
)

type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]pkgmqtt.MessageHandler
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]pkgmqtt.MessageHandler{}}
}

func (f *fakeClient) Start(context.Context) error { return nil }
func (f *fakeClient) Disconnect(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}
func (f *fakeClient) Publish(context.Context, string, int, bool, []byte) error { return nil }
func (f *fakeClient) Subscribe(_ context.Context, t string, _ int, h pkgmqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[t] = h
	return nil
}
func (f *fakeClient) Unsubscribe(context.Context, string) error { return nil }
func (f *fakeClient) AwaitConnection(context.Context) error    { return nil }
func (f *fakeClient) IsConnected() bool                        { return true }

func (f *fakeClient) handler(t string) pkgmqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[t]
}

func (f *fakeClient) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type routerFunc func(ctx context.Context, ev *model.Event) error

func (f routerFunc) Route(ctx context.Context, ev *model.Event) error { return f(ctx, ev) }

func TestEnvelopeDecoder(t *testing.T) {
	topics := topic.NewBuilder("ro/v1")
	decode := EnvelopeDecoder(topics, paths.RoResponse, model.EventRoResponse)

	ev, err := decode("ro/v1/ro/response/VIN1", []byte(`{"requestId":"r1","payload":{"responseCode":"SUCCESS"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.EventRoResponse, ev.Type)
	assert.Equal(t, "VIN1", ev.VehicleID)
	assert.Equal(t, "r1", ev.RequestID)

	ev, err = decode("ro/v1/ro/response/VIN1", []byte(`{"eventType":"RO_REQUEST","vehicleId":"VIN2"}`))
	require.NoError(t, err)
	assert.Equal(t, model.EventRoRequest, ev.Type, "an explicit type wins")
	assert.Equal(t, "VIN2", ev.VehicleID)

	_, err = decode("ro/v1/ro/response/VIN1", []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, core.IsMalformed(err))
}

func TestServerSubscribesAndRoutes(t *testing.T) {
	client := newFakeClient()
	pool := partition.New(partition.Options{Partitions: 2, QueueSize: 4, Log: logr.Discard()})

	routed := make(chan *model.Event, 1)
	router := routerFunc(func(_ context.Context, ev *model.Event) error {
		routed <- ev
		return nil
	})

	srv := NewServer(client, topic.NewBuilder("ro/v1"), paths.GroupProcessor, 1, pool, router)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return client.subscribed() == len(inbound) }, 2*time.Second, 10*time.Millisecond)

	h := client.handler("$share/ro-processor/ro/v1/ro/request/+")
	require.NotNil(t, h)
	h(ctx, "ro/v1/ro/request/VIN7", []byte(`{"requestId":"r9"}`))

	select {
	case ev := <-routed:
		assert.Equal(t, model.EventRoRequest, ev.Type)
		assert.Equal(t, "VIN7", ev.VehicleID)
		assert.Equal(t, "r9", ev.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not routed")
	}

	// Undecodable messages never reach the router.
	h(ctx, "ro/v1/ro/request/VIN7", []byte(`garbage`))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, client.disconnected)
	assert.Empty(t, routed)
}

func TestServerWithoutGroup(t *testing.T) {
	client := newFakeClient()
	pool := partition.New(partition.Options{Log: logr.Discard()})
	srv := NewServer(client, topic.NewBuilder("ro/v1"), "", 1, pool, routerFunc(func(context.Context, *model.Event) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return client.subscribed() == len(inbound) }, 2*time.Second, 10*time.Millisecond)
	assert.NotNil(t, client.handler("ro/v1/schedule/notification/+"))

	cancel()
	require.NoError(t, <-done)
}
