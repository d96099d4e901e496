// Package barrier implements the fan-out/counting-barrier concurrency model
// spec §5 describes: a bounded worker pool processes N independent jobs
// (field-chunk reads or writes), each job releases exactly one permit on
// exit (success or failure), errors are collected rather than thrown
// through the pool, and the caller blocks until all N permits are
// released before raising the first error.
//
// This is the generalization of the teacher's internal/xsync and
// internal/sync2 helpers (sync.Map/sync.Pool wrappers used to coordinate
// the VM's worker goroutines) to SKilL's job shape: a flat list of
// independent field-chunk jobs rather than a bytecode VM schedule.
package barrier

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Job is one unit of parallel work: a field-chunk read or write.
type Job func() error

// Run submits jobs to a pool of at most parallelism concurrent workers,
// waits for every job to release its permit, and returns the first error
// encountered (if any) after all jobs have completed — matching spec §5's
// "the barrier still waits for all submitted jobs... after join, the first
// error is rethrown".
//
// parallelism <= 0 means unbounded (len(jobs) concurrent workers).
func Run(ctx context.Context, parallelism int, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = len(jobs)
	}

	sem := semaphore.NewWeighted(int64(parallelism))
	barrier := make(chan struct{}, len(jobs))

	var mu sync.Mutex
	var firstErr error

	for _, job := range jobs {
		job := job
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled before the job could even start; still
			// record it so the barrier count stays correct.
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			barrier <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { barrier <- struct{}{} }()
			if err := job(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < len(jobs); i++ {
		<-barrier
	}

	return firstErr
}
