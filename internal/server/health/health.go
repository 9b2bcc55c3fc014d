// Package health checks the server's dependencies: the metadata database
// and the object store.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

var dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "bdk_dependency_up",
	Help: "Dependency health as seen by the last check (1 = ok, 0 = fail).",
}, []string{"dependency"})

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Report is the combined outcome of every check.
type Report struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

func (r Report) Healthy() bool { return r.Status == StatusOK }

type check struct {
	name string
	fn   CheckFunc
}

// Checker runs registered checks concurrently, each bounded by timeout.
type Checker struct {
	checks  []check
	timeout time.Duration
	now     func() time.Time
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout, now: time.Now}
}

// Add registers a check under name.
func (c *Checker) Add(name string, fn CheckFunc) *Checker {
	c.checks = append(c.checks, check{name: name, fn: fn})
	return c
}

// Check runs every check and reports fail if any of them fails.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{Status: StatusOK, Timestamp: c.now().UTC(), Checks: make(map[string]CheckResult, len(c.checks))}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ch := range c.checks {
		wg.Add(1)
		go func(ch check) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := ch.fn(cctx)
			res := CheckResult{Status: StatusOK, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = StatusFail
				res.Message = err.Error()
				dependencyUp.WithLabelValues(ch.name).Set(0)
			} else {
				dependencyUp.WithLabelValues(ch.name).Set(1)
			}

			mu.Lock()
			report.Checks[ch.name] = res
			if err != nil {
				report.Status = StatusFail
			}
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	return report
}

// Watch runs Check every interval and passes each report to fn until ctx
// ends. The first check runs immediately.
func (c *Checker) Watch(ctx context.Context, interval time.Duration, fn func(Report)) {
	fn(c.Check(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.Check(ctx))
		}
	}
}
