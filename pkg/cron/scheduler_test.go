package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.Add("sweep", "@every 1m", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("cleanup", "0 0 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("presence", "*/5 * * * *", func(context.Context) error { return nil }))

	assert.Error(t, s.Add("sweep", "@every 1m", nil), "duplicate names are rejected")
	assert.Error(t, s.Add("broken", "not a schedule", nil))

	_, ok := s.job("broken")
	assert.False(t, ok)
	assert.True(t, s.NextRun("missing").IsZero())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	assert.False(t, s.NextRun("tick").IsZero())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Add("slow", "@every 1h", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan bool)
	go func() { done <- s.RunNow("slow") }()
	<-started

	assert.False(t, s.RunNow("slow"), "a run in progress is not started again")

	close(release)
	assert.True(t, <-done)
	assert.False(t, s.RunNow("missing"))
}
