// Package health serves liveness and readiness probes backed by periodic
// checks.
//
// A check flips to failing only after FailureThreshold consecutive errors and
// back to passing after one success, so a single slow ping does not take the
// service out of rotation.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks decide whether the process should receive traffic.
	Readiness
)

const defaultFailureThreshold = 3

// Check describes one registered check.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
	// FailureThreshold defaults to 3.
	FailureThreshold int
}

type probe struct {
	Check

	passing atomic.Bool
	lastErr atomic.Pointer[string]
	checked atomic.Int64

	// Only touched by the goroutine running the check.
	fails int
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Func(ctx)
	p.checked.Store(time.Now().UnixNano())
	if err == nil {
		p.fails = 0
		p.lastErr.Store(nil)
		p.passing.Store(true)
		return
	}

	msg := err.Error()
	p.lastErr.Store(&msg)
	p.fails++
	if p.fails >= p.FailureThreshold {
		p.passing.Store(false)
	}
}

func (p *probe) result() CheckResult {
	r := CheckResult{Status: StatusOK}
	if ns := p.checked.Load(); ns != 0 {
		at := time.Unix(0, ns).UTC()
		r.CheckedAt = &at
	}
	if msg := p.lastErr.Load(); msg != nil {
		r.Error = *msg
	}
	if !p.passing.Load() {
		r.Status = StatusFailing
	}
	return r
}

// Probe statuses reported in JSON.
const (
	StatusOK      = "ok"
	StatusFailing = "failing"
)

// CheckResult is the last observed state of a check.
type CheckResult struct {
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

// Report is the probe response body.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Health tracks checks for both probes.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes map[Kind][]*probe
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{probes: make(map[Kind][]*probe, 2)}
}

// Register adds a check. Checks start passing. Register must be called
// before Start.
func (h *Health) Register(kind Kind, c Check) {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	p := &probe{Check: c}
	p.passing.Store(true)

	h.mu.Lock()
	h.probes[kind] = append(h.probes[kind], p)
	h.mu.Unlock()
}

// Start runs every check immediately and then once per interval until Stop
// or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	var all []*probe
	for _, ps := range h.probes {
		all = append(all, ps...)
	}
	h.mu.Unlock()

	for _, p := range all {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop ends the background checks. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service as initialized, or as draining when false.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && h.report(Readiness).Status == StatusOK
}

func (h *Health) report(kind Kind) Report {
	h.mu.RLock()
	ps := h.probes[kind]
	h.mu.RUnlock()

	rep := Report{Status: StatusOK}
	if len(ps) == 0 {
		return rep
	}
	rep.Checks = make(map[string]CheckResult, len(ps))
	for _, p := range ps {
		r := p.result()
		rep.Checks[p.Name] = r
		if r.Status != StatusOK {
			rep.Status = StatusFailing
		}
	}
	return rep
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	write(w, h.report(Liveness))
}

// ReadyEndpoint serves /readyz. It fails while the service is not marked
// ready even if every check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	rep := h.report(Readiness)
	if !h.ready.Load() {
		rep.Status = StatusFailing
		if rep.Checks == nil {
			rep.Checks = make(map[string]CheckResult, 1)
		}
		rep.Checks["startup"] = CheckResult{Status: StatusFailing, Error: "service is not ready"}
	}
	write(w, rep)
}

func write(w http.ResponseWriter, rep Report) {
	status := http.StatusOK
	if rep.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
