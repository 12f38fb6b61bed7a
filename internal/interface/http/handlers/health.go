package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker reports whether the process and its backing services work.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc probes one dependency; a non-nil error marks it failed.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is one probe's outcome. A failed Optional probe degrades the
// status but keeps the service ready.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

type probe struct {
	name     string
	fn       HealthCheckFunc
	optional bool
}

// CompositeHealthChecker runs its probes concurrently, each under its own
// timeout.
type CompositeHealthChecker struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	probes []probe
}

func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{version: version, started: time.Now(), timeout: 3 * time.Second}
}

// SetTimeout bounds each probe.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) { c.timeout = timeout }

// AddCheck registers a dependency the service cannot run without, such as
// PostgreSQL.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.add(probe{name: name, fn: check})
}

// AddOptionalCheck registers a dependency whose loss only degrades the
// service, such as the leaderboard cache.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, check HealthCheckFunc) {
	c.add(probe{name: name, fn: check, optional: true})
}

func (c *CompositeHealthChecker) add(p probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, p)
}

func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := append([]probe(nil), c.probes...)
	c.mu.RUnlock()

	results := make([]CheckResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = c.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(probes)),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
		Message:   "All checks passed",
	}
	var failing []string
	for i, p := range probes {
		r := results[i]
		status.Checks[p.name] = r
		if r.Healthy {
			continue
		}
		failing = append(failing, p.name)
		if !r.Optional {
			status.Healthy, status.Ready = false, false
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		status.Message = "Failing checks: " + strings.Join(failing, ", ")
	}
	return status
}

func (c *CompositeHealthChecker) run(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)
	r := CheckResult{
		Healthy:  err == nil,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
		Optional: p.optional,
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}
