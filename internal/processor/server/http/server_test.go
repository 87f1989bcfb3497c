package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/pkg/options"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	code, body := get(t, NewHandler(time.Second), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestReadyz(t *testing.T) {
	healthy := Check{Name: "store", Check: func(context.Context) error { return nil }}
	broken := Check{Name: "broker", Check: func(context.Context) error { return errors.New("disconnected") }}

	code, body := get(t, NewHandler(time.Second, healthy), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, NewHandler(time.Second, healthy, broken), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready: broker", body)
}

func TestMetrics(t *testing.T) {
	metrics.RedeliveriesTotal.Inc()

	code, body := get(t, NewHandler(time.Second), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "remoteops_redeliveries_total")
}

func TestServerShutsDownOnCancel(t *testing.T) {
	opts := options.NewHttpOptions()
	opts.Addr = "127.0.0.1:0"
	srv := NewServer(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
