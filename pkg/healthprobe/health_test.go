package healthprobe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) (int, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealth_AlwaysOK(t *testing.T) {
	hc := New()

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)
		code, resp := serve(t, hc.Health())
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", resp.Status)
		assert.NotEmpty(t, resp.Uptime)
	}
}

func TestReady_StateChanges(t *testing.T) {
	hc := New()

	code, resp := serve(t, hc.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", resp.Status)
	assert.NotEmpty(t, resp.Message)

	hc.SetReady(true)
	code, resp = serve(t, hc.Ready())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp.Status)

	hc.SetReady(false)
	code, _ = serve(t, hc.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReady_Checks(t *testing.T) {
	hc := New()
	hc.SetReady(true)

	var storageErr error
	hc.AddCheck("storage", func(context.Context) error { return storageErr })
	hc.AddCheck("reserve", func(context.Context) error { return nil })

	code, resp := serve(t, hc.Ready())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"storage": "ok", "reserve": "ok"}, resp.Checks)

	storageErr = errors.New("connection refused")
	code, resp = serve(t, hc.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["storage"])
	assert.Equal(t, "ok", resp.Checks["reserve"])

	code, _ = serve(t, hc.Health())
	assert.Equal(t, http.StatusOK, code, "liveness ignores dependency checks")
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := New()
	handler := hc.Ready()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.AddCheck("flip", func(context.Context) error { return nil })
		}
	}()

	for i := 0; i < 100; i++ {
		handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	}
	<-done
}
