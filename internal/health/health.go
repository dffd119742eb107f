package health

import (
	"context"
	"sync"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	name   string
	pinger Pinger
}

// Checker pings every registered dependency and reports per-dependency
// results. A nil pinger is skipped.
type Checker struct {
	timeout time.Duration
	checks  []check
}

type Report struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

func (c *Checker) Add(name string, pinger Pinger) *Checker {
	if pinger != nil {
		c.checks = append(c.checks, check{name: name, pinger: pinger})
	}
	return c
}

func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := Report{Healthy: true, Checks: make(map[string]string, len(c.checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ck := range c.checks {
		wg.Add(1)
		go func(ck check) {
			defer wg.Done()
			status := "ok"
			if err := ck.pinger.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[ck.name] = status
			if status != "ok" {
				report.Healthy = false
			}
		}(ck)
	}
	wg.Wait()
	return report
}
