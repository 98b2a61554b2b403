package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, handler http.HandlerFunc) (int, Report) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var rep Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	return w.Code, rep
}

func runN(h *Health, kind Kind, n int) {
	for _, p := range h.probes[kind] {
		for range n {
			p.run(context.Background())
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "goroutines", Func: ok})

	code, rep := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, rep.Status)
	assert.Equal(t, StatusOK, rep.Checks["goroutines"].Status)
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	code, rep := get(t, New().LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, rep.Checks)
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "db", Func: failing("connection refused")})

	runN(h, Liveness, 2)
	code, rep := get(t, h.LiveEndpoint)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connection refused", rep.Checks["db"].Error)
	assert.NotNil(t, rep.Checks["db"].CheckedAt)

	runN(h, Liveness, 1)
	code, rep = get(t, h.LiveEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusFailing, rep.Status)
	assert.Equal(t, StatusFailing, rep.Checks["db"].Status)
}

func TestCustomFailureThreshold(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "redis", Func: failing("timeout"), FailureThreshold: 1})
	h.SetReady(true)

	runN(h, Readiness, 1)
	assert.False(t, h.IsReady())
}

func TestRecoversAfterOneSuccess(t *testing.T) {
	var healthy atomic.Bool
	h := New()
	h.Register(Readiness, Check{Name: "postgres", Func: func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	}})
	h.SetReady(true)

	runN(h, Readiness, 3)
	require.False(t, h.IsReady())

	healthy.Store(true)
	runN(h, Readiness, 1)
	assert.True(t, h.IsReady())

	_, rep := get(t, h.ReadyEndpoint)
	assert.Empty(t, rep.Checks["postgres"].Error)
}

func TestReadyEndpoint_NotMarkedReady(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "postgres", Func: ok})

	code, rep := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", rep.Checks["startup"].Error)
	assert.Equal(t, StatusOK, rep.Checks["postgres"].Status)

	h.SetReady(true)
	code, _ = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	code, _ = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_IgnoresLivenessChecks(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "goroutines", Func: failing("leak"), FailureThreshold: 1})
	h.Register(Readiness, Check{Name: "postgres", Func: ok})
	h.SetReady(true)
	runN(h, Liveness, 1)

	code, _ := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStartAndStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Register(Readiness, Check{Name: "counter", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(30 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{
		Name:             "slow",
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.SetReady(true)

	runN(h, Readiness, 1)
	assert.False(t, h.IsReady())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "db", Func: ok})
	h.Register(Liveness, Check{Name: "goroutines", Func: ok})
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				w := httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
				h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck(pingerFunc(ok))(context.Background()))

	err := PingCheck(pingerFunc(failing("refused")))(context.Background())
	require.EqualError(t, err, "ping: refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
