// Package health runs liveness and readiness probes with per-check failure
// thresholds so one transient dependency hiccup does not flip a pod out of
// rotation.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

// Check is a single probe that can succeed or fail.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type funcCheck struct {
	name string
	fn   func(context.Context) error
}

func (c *funcCheck) Name() string                    { return c.name }
func (c *funcCheck) Check(ctx context.Context) error { return c.fn(ctx) }

// NewCheck adapts a plain function into a Check.
func NewCheck(name string, fn func(context.Context) error) Check {
	return &funcCheck{name: name, fn: fn}
}

// Result is the outcome of one check execution.
type Result struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Status aggregates the results of one probe round.
type Status struct {
	Healthy bool
	Checks  []Result
}

// Checker executes liveness and readiness checks. A check only reports
// unhealthy after failureThreshold consecutive failures.
type Checker struct {
	mu               sync.RWMutex
	liveness         []Check
	readiness        []Check
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	log              logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each individual check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithFailureThreshold sets how many consecutive failures a check needs
// before it reports unhealthy. Default is 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithLogger sets the probe logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) { c.log = l }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted.
func (c *Checker) AddLivenessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, check)
}

// AddReadinessCheck registers a check that decides whether the service can
// take traffic.
func (c *Checker) AddReadinessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, check)
}

// CheckLiveness runs all liveness checks.
func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	checks := c.liveness
	c.mu.RUnlock()
	return c.run(ctx, checks)
}

// CheckReadiness runs all readiness checks.
func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	checks := c.readiness
	c.mu.RUnlock()
	return c.run(ctx, checks)
}

// run executes the checks concurrently and aggregates.
func (c *Checker) run(ctx context.Context, checks []Check) (*Status, error) {
	if len(checks) == 0 {
		return &Status{Healthy: true, Checks: []Result{}}, nil
	}

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, chk Check) {
			defer wg.Done()
			results[idx] = c.runOne(ctx, chk)
		}(i, check)
	}
	wg.Wait()

	status := &Status{Healthy: true, Checks: results}
	var failed []string
	for _, r := range results {
		if !r.Healthy {
			status.Healthy = false
			failed = append(failed, r.Name)
		}
	}
	if !status.Healthy {
		return status, fmt.Errorf("health checks failed: %v", failed)
	}
	return status, nil
}

func (c *Checker) runOne(parent context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	result := Result{Name: check.Name(), Latency: latency}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[check.Name()] = 0
		result.Healthy = true
		return result
	}

	c.failures[check.Name()]++
	if c.failures[check.Name()] < c.failureThreshold {
		// Below the threshold a failure is still reported healthy.
		result.Healthy = true
		if c.log != nil {
			c.log.Debug("health check failed below threshold",
				logger.StringField("check", check.Name()),
				logger.ErrorField(err),
				logger.IntField("failures", c.failures[check.Name()]))
		}
		return result
	}

	result.Error = err.Error()
	if c.log != nil {
		c.log.Warn("health check failed",
			logger.StringField("check", check.Name()),
			logger.ErrorField(err),
			logger.DurationField("latency", latency))
	}
	return result
}
