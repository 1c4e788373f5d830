package observability

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// HealthCheck probes one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// ComponentHealth is the health report for a single component.
type ComponentHealth struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"last_checked"`
	Latency     time.Duration   `json:"latency_ms"`
}

// SystemHealth is the aggregate health of the whole process.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	Uptime     time.Duration              `json:"uptime"`
}

// HealthChecker runs registered component checks on demand. The aggregate
// status is the worst individual status: one unhealthy component marks the
// system unhealthy.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	started time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		started: time.Now(),
	}
}

// Register adds a named component check. Re-registering replaces it.
func (c *HealthChecker) Register(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every registered check synchronously.
func (c *HealthChecker) Check(ctx context.Context) SystemHealth {
	c.mu.RLock()
	checks := make(map[string]HealthCheck, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checks))
	worst := StatusHealthy

	for name, fn := range checks {
		start := time.Now()
		result := fn(ctx)
		result.Name = name
		result.LastChecked = time.Now()
		result.Latency = time.Since(start)
		components[name] = result

		switch result.Status {
		case StatusUnhealthy:
			worst = StatusUnhealthy
		case StatusDegraded:
			if worst == StatusHealthy {
				worst = StatusDegraded
			}
		}
	}

	return SystemHealth{
		Status:     worst,
		Components: components,
		Timestamp:  time.Now(),
		Uptime:     time.Since(c.started),
	}
}
