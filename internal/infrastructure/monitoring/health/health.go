// Package health aggregates dependency checks for the HTTP probes, the gRPC
// health service and the worker status endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

// Checker is a component that can report its health.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckFunc adapts a ping function, e.g. (*postgres.Connection).HealthCheck.
func CheckFunc(name string, fn func(ctx context.Context) error) Checker {
	return funcChecker{name: name, fn: fn}
}

// Report is the outcome of one round of checks.
type Report struct {
	Status     common.HealthStatus      `json:"status"`
	Components []common.ComponentHealth `json:"components,omitempty"`
}

// Healthy reports whether no component is down.
func (r Report) Healthy() bool { return r.Status != common.HealthDown }

// Registry runs a fixed set of checkers.
type Registry struct {
	checkers []Checker
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewRegistry creates a registry. metrics and logger may be nil.
func NewRegistry(metrics *prometheus.AppMetrics, logger logging.Logger, checkers ...Checker) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{checkers: checkers, metrics: metrics, logger: logger.Named("health")}
}

// Add appends a checker. Not safe to call concurrently with Check.
func (r *Registry) Add(c Checker) { r.checkers = append(r.checkers, c) }

// Len is the number of registered checkers.
func (r *Registry) Len() int { return len(r.checkers) }

// Check runs all checkers concurrently. Results keep registration order.
func (r *Registry) Check(ctx context.Context) Report {
	results := make([]common.ComponentHealth, len(r.checkers))
	var wg sync.WaitGroup
	for i, checker := range r.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)
			ch := common.ComponentHealth{
				Name:    c.Name(),
				Status:  common.HealthUp,
				Latency: time.Since(start),
			}
			if err != nil {
				ch.Status = common.HealthDown
				ch.Message = err.Error()
				r.logger.Warn("health check failed", logging.String("component", ch.Name), logging.Err(err))
			}
			prometheus.SetHealth(r.metrics, ch.Name, err == nil)
			results[i] = ch
		}(i, checker)
	}
	wg.Wait()

	return Report{Status: common.OverallHealth(results), Components: results}
}
