package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name    string
	runs    atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
	panics  bool
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.started != nil {
		close(j.started)
	}
	if j.block != nil {
		<-j.block
	}
	if j.panics {
		panic("boom")
	}
	return j.err
}

func TestAddJobRejectsBadSpecAndDuplicates(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{name: "bad"}, "not a spec"))
	require.NoError(t, s.AddJob(&countingJob{name: "health"}, "@every 1m"))
	require.NoError(t, s.AddJob(&countingJob{name: "nightly"}, "0 3 * * *"))
	require.Error(t, s.AddJob(&countingJob{name: "health"}, "@every 1m"))
}

func TestRunNow(t *testing.T) {
	s := NewCronScheduler()
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "fail", err: errors.New("boom")}
	require.NoError(t, s.AddJob(ok, "@every 1h"))
	require.NoError(t, s.AddJob(failing, "@every 1h"))

	require.NoError(t, s.RunNow("ok"))
	require.EqualError(t, s.RunNow("fail"), "boom")
	require.Error(t, s.RunNow("missing"))
	require.Equal(t, int32(1), ok.runs.Load())
	require.Equal(t, int32(1), failing.runs.Load())
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "panic", panics: true}, "@every 1h"))
	err := s.RunNow("panic")
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicked")
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{}), started: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "@every 1h"))

	done := make(chan error, 1)
	go func() { done <- s.RunNow("slow") }()
	<-job.started

	require.NoError(t, s.RunNow("slow"))
	require.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	require.NoError(t, <-done)
}

func TestNextAfterStart(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "tick"}, "@every 1h"))
	require.True(t, s.Next("tick").IsZero())

	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return !s.Next("tick").IsZero() }, time.Second, 10*time.Millisecond)
	require.True(t, s.Next("missing").IsZero())
}
