package barrier_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/barrier"
)

func TestRunAllSucceed(t *testing.T) {
	var count int64
	jobs := make([]barrier.Job, 50)
	for i := range jobs {
		jobs[i] = func() error {
			atomic.AddInt64(&count, 1)
			return nil
		}
	}
	err := barrier.Run(context.Background(), 4, jobs)
	require.NoError(t, err)
	require.EqualValues(t, 50, count)
}

func TestRunFirstErrorSurvivesAfterAllComplete(t *testing.T) {
	var completed int64
	jobs := make([]barrier.Job, 10)
	for i := range jobs {
		i := i
		jobs[i] = func() error {
			atomic.AddInt64(&completed, 1)
			if i == 3 {
				return errBoom
			}
			return nil
		}
	}
	err := barrier.Run(context.Background(), 2, jobs)
	require.ErrorIs(t, err, errBoom)
	require.EqualValues(t, 10, completed)
}

func TestRunEmptyJobs(t *testing.T) {
	require.NoError(t, barrier.Run(context.Background(), 4, nil))
}

func TestRunUnboundedParallelism(t *testing.T) {
	jobs := make([]barrier.Job, 20)
	for i := range jobs {
		jobs[i] = func() error { return nil }
	}
	require.NoError(t, barrier.Run(context.Background(), 0, jobs))
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
