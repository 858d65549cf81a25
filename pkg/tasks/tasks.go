// Package tasks runs analyses asynchronously behind a submit/poll boundary.
//
// A caller submits a [Job] and receives a [Handle] immediately; the analysis
// runs in the background and its [pipeline.Result] is stored under the task
// ID. Pollers observe only the task's [Status] and, once finished, the
// result. Analysis failures never surface as Go errors from [Runner.Poll]:
// they are carried inside the result, as a failed status.
//
// [LocalRunner] is the in-process implementation used by the CLI. Results
// are written to a [cache.Cache], so a task submitted by one process can be
// polled from another when the store is shared (file or Redis).
//
// # Usage
//
//	r, err := tasks.NewLocalRunner(pipeline.NewRunner(logger), tasks.Options{
//	    Store:       store,
//	    WorkRoot:    "/var/lib/reliefkit/work",
//	    Concurrency: 2,
//	})
//	h, err := r.Submit(ctx, tasks.Job{Analysis: pipeline.Viewshed, Request: req})
//	res, err := tasks.Wait(ctx, r, h.ID, 200*time.Millisecond)
package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/reliefkit/pkg/cache"
	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

// Status is the lifecycle state of a task.
type Status string

// Task states.
const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Done reports whether s is terminal.
func (s Status) Done() bool { return s == StatusSuccess || s == StatusFailure }

// Job is an analysis to run.
type Job struct {
	Analysis pipeline.Analysis `json:"analysis"`
	Request  pipeline.Request  `json:"request"`
}

// Handle identifies a submitted task.
type Handle struct {
	ID        string            `json:"id"`
	Analysis  pipeline.Analysis `json:"analysis"`
	Submitted time.Time         `json:"submitted"`
}

// Runner is the asynchronous task boundary.
type Runner interface {
	// Submit validates the job synchronously and schedules it. Validation
	// failures are returned as input errors and no task is created.
	Submit(ctx context.Context, job Job) (Handle, error)

	// Poll returns the task status, and the result once the task is done.
	// An unknown task ID yields [cache.ErrNotFound].
	Poll(ctx context.Context, id string) (Status, *pipeline.Result, error)
}

// Executor runs one analysis. *pipeline.Runner implements it.
type Executor interface {
	Run(ctx context.Context, a pipeline.Analysis, req pipeline.Request) *pipeline.Result
}

// Record is the stored form of a task.
type Record struct {
	ID        string            `json:"id"`
	Analysis  pipeline.Analysis `json:"analysis"`
	Status    Status            `json:"status"`
	Submitted time.Time         `json:"submitted"`
	Finished  time.Time         `json:"finished,omitzero"`
	WorkDir   string            `json:"work_dir,omitempty"`
	Result    *pipeline.Result  `json:"result,omitempty"`
}

// Duration returns how long the task ran, or zero while it is unfinished.
func (r *Record) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Submitted)
}

// LoadRecord reads the stored record of task id from store.
func LoadRecord(ctx context.Context, store cache.Cache, keyer cache.Keyer, id string) (*Record, error) {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	data, hit, err := store.Get(ctx, keyer.ResultKey(id))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read task %s", id)
	}
	if !hit {
		return nil, cache.ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "decode task %s", id)
	}
	return &rec, nil
}

// Wait polls r every interval until task id finishes or ctx is done.
func Wait(ctx context.Context, r Runner, id string, interval time.Duration) (*pipeline.Result, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, res, err := r.Poll(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.Done() {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
