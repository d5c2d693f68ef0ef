package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_TimesUnits(t *testing.T) {
	c := NewCollector()

	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	c.BeginUnit("foo.a-test")
	clock = clock.Add(10 * time.Millisecond)
	c.EndUnit("foo.a-test")

	c.BeginUnit("foo.b-test")
	clock = clock.Add(30 * time.Millisecond)
	c.EndUnit("foo.b-test")

	s := c.Summary()
	assert.Equal(t, int64(2), s.Units)
	assert.InDelta(t, 30*time.Millisecond, s.Max, float64(time.Millisecond))
	assert.LessOrEqual(t, s.P50, s.P99)
}

func TestCollector_EndWithoutBeginIgnored(t *testing.T) {
	c := NewCollector()
	c.EndUnit("never-started")

	assert.Equal(t, int64(0), c.Summary().Units)
}

func TestCollector_OverlappingUnitsTrackedIndependently(t *testing.T) {
	c := NewCollector()
	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	c.BeginUnit("a")
	c.BeginUnit("b")
	clock = clock.Add(5 * time.Millisecond)
	c.EndUnit("a")
	clock = clock.Add(5 * time.Millisecond)
	c.EndUnit("b")

	assert.Equal(t, int64(2), c.Summary().Units)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.BeginUnit("a")
	c.EndUnit("a")

	c.Reset()

	assert.Equal(t, int64(0), c.Summary().Units)
}
