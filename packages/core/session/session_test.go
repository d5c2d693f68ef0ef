package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchcat-dev/watchcat/packages/core/future"
)

func TestSession_New(t *testing.T) {
	s := New()
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, uint64(DefaultMinPasses), s.MinPasses())
	assert.False(t, s.Outcome().Settled())
	assert.Equal(t, Counts{}, s.Snapshot())
}

func TestSession_CountsMatchIncrements(t *testing.T) {
	s := New()
	s.Reset()

	for i := 0; i < 5; i++ {
		s.Increment(Pass)
	}
	for i := 0; i < 3; i++ {
		s.Increment(Fail)
	}
	s.Increment(Error)

	c := s.Snapshot()
	assert.Equal(t, uint64(5), c.Pass)
	assert.Equal(t, uint64(3), c.Fail)
	assert.Equal(t, uint64(1), c.Error)
	assert.Equal(t, uint64(9), c.Total())
}

func TestSession_CountsUnderInterleaving(t *testing.T) {
	s := New()
	s.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); s.Increment(Pass) }()
		go func() { defer wg.Done(); s.Increment(Fail) }()
		go func() { defer wg.Done(); s.Increment(Error) }()
	}
	wg.Wait()

	c := s.Snapshot()
	assert.Equal(t, uint64(100), c.Pass)
	assert.Equal(t, uint64(100), c.Fail)
	assert.Equal(t, uint64(100), c.Error)
}

func TestSession_ResetZeroesCounts(t *testing.T) {
	s := New()
	s.Increment(Pass)
	s.Increment(Fail)

	s.Reset()

	assert.Equal(t, Counts{}, s.Snapshot())
}

func TestSession_Verdict(t *testing.T) {
	tests := []struct {
		name       string
		pass, fail uint64
		errs       uint64
		wantState  future.State
		wantReason string
	}{
		{"zero tests ran", 0, 0, 0, future.Rejected, "fewer than 2 assertions passed (got 0)"},
		{"enough passes", 3, 0, 0, future.Resolved, ""},
		{"one failure poisons the run", 1, 1, 0, future.Rejected, "some tests failed or errored"},
		{"one error poisons the run", 5, 0, 1, future.Rejected, "some tests failed or errored"},
		{"below threshold", 1, 0, 0, future.Rejected, "fewer than 2 assertions passed (got 1)"},
		{"exactly at threshold", 2, 0, 0, future.Resolved, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Reset()
			for i := uint64(0); i < tt.pass; i++ {
				s.Increment(Pass)
			}
			for i := uint64(0); i < tt.fail; i++ {
				s.Increment(Fail)
			}
			for i := uint64(0); i < tt.errs; i++ {
				s.Increment(Error)
			}

			s.Verdict()

			state, err := s.Outcome().Result()
			assert.Equal(t, tt.wantState, state)
			if tt.wantReason != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantReason, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSession_VerdictWithCustomThreshold(t *testing.T) {
	s := New(WithMinPasses(1))
	s.Increment(Pass)

	s.Verdict()

	state, err := s.Outcome().Result()
	assert.Equal(t, future.Resolved, state)
	assert.NoError(t, err)
}

func TestSession_VerdictAfterEarlierRejectionIsNoOp(t *testing.T) {
	s := New()
	loadErr := assert.AnError
	s.Outcome().Reject(loadErr)

	// A late end-run verdict must not overwrite the load failure.
	for i := 0; i < 10; i++ {
		s.Increment(Pass)
	}
	s.Verdict()

	state, err := s.Outcome().Result()
	assert.Equal(t, future.Rejected, state)
	assert.Equal(t, loadErr, err)
}

func TestSession_FreshSessionsDoNotShareCounts(t *testing.T) {
	a := New()
	a.Increment(Pass)

	b := New()
	assert.Equal(t, Counts{}, b.Snapshot())
	assert.NotEqual(t, a.ID(), b.ID())
}
