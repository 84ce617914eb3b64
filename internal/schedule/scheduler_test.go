package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs    atomic.Int32
	release chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.release != nil {
		<-j.release
	}
	return nil
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "not a spec"))
}

func TestAddJobEmptySpecDisables(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{}, ""))
	require.Error(t, s.RunNow("counting"))
}

func TestAddJobDuplicate(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countingJob{}, "*/5 * * * *"))
	require.Error(t, s.AddJob(&countingJob{}, "*/5 * * * *"))
}

func TestRunNow(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{}
	require.NoError(t, s.AddJob(job, "0 0 1 1 *"))
	require.NoError(t, s.RunNow("counting"))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{release: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "0 0 1 1 *"))
	e := s.entries["counting"]

	done := make(chan bool)
	go func() { done <- s.run(e) }()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	require.False(t, s.run(e))
	close(job.release)
	require.True(t, <-done)
	require.Equal(t, int32(1), job.runs.Load())
}
