// internal/monitoring/health.go
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheckFunc probes one dependency. A nil error is healthy.
type HealthCheckFunc func(ctx context.Context) error

type healthCheck struct {
	name     string
	critical bool
	fn       HealthCheckFunc
}

// HealthCheckResult is the outcome of one check
type HealthCheckResult struct {
	Status   HealthStatus  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Critical bool          `json:"critical"`
}

// SystemHealth is the body served at /health
type SystemHealth struct {
	Status         HealthStatus                 `json:"status"`
	Timestamp      time.Time                    `json:"timestamp"`
	Uptime         string                       `json:"uptime"`
	GoroutineCount int                          `json:"goroutine_count"`
	Checks         map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand
type HealthManager struct {
	mu      sync.RWMutex
	checks  []healthCheck
	timeout time.Duration
	started time.Time
}

// NewHealthManager creates a health manager; timeout bounds each check.
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{timeout: timeout, started: time.Now()}
}

// RegisterCheck adds a check. A failing critical check makes the whole
// system unhealthy; any other failure only degrades it.
func (hm *HealthManager) RegisterCheck(name string, critical bool, fn HealthCheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks = append(hm.checks, healthCheck{name: name, critical: critical, fn: fn})
}

// CheckAll runs every check concurrently and aggregates the results.
func (hm *HealthManager) CheckAll(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := append([]healthCheck(nil), hm.checks...)
	hm.mu.RUnlock()

	results := make([]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = hm.run(ctx, c)
		}()
	}
	wg.Wait()

	health := SystemHealth{
		Status:         HealthStatusHealthy,
		Timestamp:      time.Now(),
		Uptime:         time.Since(hm.started).Round(time.Second).String(),
		GoroutineCount: runtime.NumGoroutine(),
	}
	if len(checks) > 0 {
		health.Checks = make(map[string]HealthCheckResult, len(checks))
	}

	names := make([]string, 0, len(checks))
	for i, c := range checks {
		health.Checks[c.name] = results[i]
		names = append(names, c.name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := health.Checks[name]
		if r.Status == HealthStatusHealthy {
			continue
		}
		if r.Critical {
			health.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusHealthy {
			health.Status = HealthStatusDegraded
		}
	}
	return health
}

func (hm *HealthManager) run(ctx context.Context, c healthCheck) (result HealthCheckResult) {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	start := time.Now()
	result.Critical = c.critical
	defer func() {
		if r := recover(); r != nil {
			result.Status = HealthStatusUnhealthy
			result.Error = fmt.Sprintf("check panicked: %v", r)
		}
		result.Duration = time.Since(start)
	}()

	if err := c.fn(ctx); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
		return result
	}
	result.Status = HealthStatusHealthy
	return result
}
