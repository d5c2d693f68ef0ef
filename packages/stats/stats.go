// Package stats collects per-unit wall times for a run cycle into an
// HDR histogram so watch mode can report latency percentiles without
// keeping every sample.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/watchcat-dev/watchcat/packages/report"
)

// Percentiles summarizes unit durations for one cycle.
type Percentiles struct {
	Units int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Collector is a report.Listener that times each test unit from
// begin-test-unit to end-test-unit.
type Collector struct {
	report.NopListener

	mu        sync.Mutex
	started   map[string]time.Time
	histogram *hdrhistogram.Histogram
	now       func() time.Time
}

// NewCollector creates a collector. Histogram range is 1us to 60s at
// 3 significant digits.
func NewCollector() *Collector {
	return &Collector{
		started:   make(map[string]time.Time),
		histogram: hdrhistogram.New(1, 60_000_000, 3),
		now:       time.Now,
	}
}

func (c *Collector) BeginUnit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[name] = c.now()
}

func (c *Collector) EndUnit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.started[name]
	if !ok {
		return
	}
	delete(c.started, name)
	_ = c.histogram.RecordValue(c.now().Sub(start).Microseconds())
}

// Reset drops all recorded samples, ready for the next cycle.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = make(map[string]time.Time)
	c.histogram.Reset()
}

// Summary returns the percentile summary of the cycle so far.
func (c *Collector) Summary() Percentiles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Percentiles{
		Units: c.histogram.TotalCount(),
		P50:   time.Duration(c.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(c.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(c.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(c.histogram.Max()) * time.Microsecond,
	}
}
