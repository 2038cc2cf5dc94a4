package resilience

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Status is the health of one dependency or of the whole service.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
	StatusDisabled Status = "disabled"
)

// HealthCheckFunc represents a function that checks service health
type HealthCheckFunc func(ctx context.Context) error

// ComponentHealth is the last observed state of a dependency.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Critical  bool      `json:"critical"`
	Error     string    `json:"error,omitempty"`
	Latency   string    `json:"latency"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report is the aggregated health response.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
}

type component struct {
	check    HealthCheckFunc
	critical bool
}

// HealthRegistry checks registered dependencies. A failing critical
// dependency makes the service down; a failing optional one degrades it.
type HealthRegistry struct {
	mu         sync.RWMutex
	components map[string]component
	timeout    time.Duration
	now        func() time.Time
}

// NewHealthRegistry bounds each check by timeout (5s when zero).
func NewHealthRegistry(timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthRegistry{
		components: make(map[string]component),
		timeout:    timeout,
		now:        time.Now,
	}
}

// Register adds or replaces a dependency. A nil check reports the
// component as disabled.
func (h *HealthRegistry) Register(name string, critical bool, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component{check: check, critical: critical}
	slog.Info("Registered health check", "component", name, "critical", critical)
}

// Check runs every check concurrently and aggregates the result.
func (h *HealthRegistry) Check(ctx context.Context) Report {
	h.mu.RLock()
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	components := make(map[string]component, len(h.components))
	for k, v := range h.components {
		components[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, c component) {
			defer wg.Done()
			results[i] = h.run(ctx, name, c)
		}(i, name, components[name])
	}
	wg.Wait()

	report := Report{Status: StatusOK, Components: results}
	for _, r := range results {
		if r.Status != StatusDown {
			continue
		}
		if r.Critical {
			report.Status = StatusDown
			break
		}
		report.Status = StatusDegraded
	}
	return report
}

func (h *HealthRegistry) run(ctx context.Context, name string, c component) ComponentHealth {
	result := ComponentHealth{Name: name, Critical: c.critical, CheckedAt: h.now().UTC()}
	if c.check == nil {
		result.Status = StatusDisabled
		result.Latency = "0s"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.check(ctx)
	result.Latency = time.Since(start).Round(time.Microsecond).String()
	if err != nil {
		result.Status = StatusDown
		result.Error = err.Error()
		slog.Warn("Health check failed", "component", name, "error", err)
		return result
	}
	result.Status = StatusOK
	return result
}
