package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/reliefkit/pkg/cache"
	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/observability"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

// DefaultTTL is how long finished results stay pollable.
const DefaultTTL = 24 * time.Hour

// Options configures a [LocalRunner].
type Options struct {
	// Store holds task records. Defaults to an in-memory-only NullCache.
	Store cache.Cache
	// Keyer derives store keys. Defaults to cache.DefaultKeyer.
	Keyer cache.Keyer
	// TTL is the lifetime of stored records. Defaults to DefaultTTL.
	TTL time.Duration
	// WorkRoot is the parent of per-task work directories. Defaults to the
	// system temporary directory.
	WorkRoot string
	// Concurrency bounds how many analyses run at once. Defaults to
	// GOMAXPROCS.
	Concurrency int
	Logger      *log.Logger
}

// LocalRunner runs analyses on goroutines of the current process.
type LocalRunner struct {
	exec   Executor
	store  cache.Cache
	keyer  cache.Keyer
	ttl    time.Duration
	root   string
	sem    *semaphore.Weighted
	group  errgroup.Group
	logger *log.Logger

	mu    sync.Mutex
	tasks map[string]*Record
	queue []queued
}

// queued is a submitted job waiting for a worker slot.
type queued struct {
	ctx context.Context
	id  string
	job Job
}

// NewLocalRunner creates a runner executing jobs with exec.
func NewLocalRunner(exec Executor, opts Options) (*LocalRunner, error) {
	if exec == nil {
		return nil, fmt.Errorf("tasks: executor is required")
	}
	if opts.Store == nil {
		opts.Store = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = filepath.Join(os.TempDir(), "reliefkit")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if err := os.MkdirAll(opts.WorkRoot, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create work root")
	}
	return &LocalRunner{
		exec:   exec,
		store:  opts.Store,
		keyer:  opts.Keyer,
		ttl:    opts.TTL,
		root:   opts.WorkRoot,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		logger: opts.Logger,
		tasks:  make(map[string]*Record),
	}, nil
}

// Submit implements Runner. The job keeps running if ctx is cancelled
// after Submit returns; context values such as the active span carry over.
func (r *LocalRunner) Submit(ctx context.Context, job Job) (Handle, error) {
	if err := job.Request.Validate(job.Analysis); err != nil {
		return Handle{}, err
	}

	id := uuid.NewString()
	rec := &Record{
		ID:        id,
		Analysis:  job.Analysis,
		Status:    StatusPending,
		Submitted: time.Now().UTC(),
		WorkDir:   filepath.Join(r.root, id),
	}
	r.mu.Lock()
	r.tasks[id] = rec
	r.queue = append(r.queue, queued{ctx: context.WithoutCancel(ctx), id: id, job: job})
	r.mu.Unlock()
	r.persist(ctx, *rec)

	observability.Task().OnTaskSubmit(ctx, string(job.Analysis))
	r.logger.Debug("task submitted", "id", id, "analysis", job.Analysis)

	r.group.Go(r.next)
	return Handle{ID: id, Analysis: job.Analysis, Submitted: rec.Submitted}, nil
}

// Poll implements Runner. Tasks of this process are answered from memory;
// anything else is looked up in the store.
func (r *LocalRunner) Poll(ctx context.Context, id string) (Status, *pipeline.Result, error) {
	r.mu.Lock()
	rec, ok := r.tasks[id]
	var snapshot Record
	if ok {
		snapshot = *rec
	}
	r.mu.Unlock()

	if !ok {
		stored, err := LoadRecord(ctx, r.store, r.keyer, id)
		if err != nil {
			return "", nil, err
		}
		snapshot = *stored
	}
	if !snapshot.Status.Done() {
		return snapshot.Status, nil, nil
	}
	return snapshot.Status, snapshot.Result, nil
}

// Record returns the current record of task id.
func (r *LocalRunner) Record(ctx context.Context, id string) (*Record, error) {
	r.mu.Lock()
	rec, ok := r.tasks[id]
	if ok {
		cp := *rec
		r.mu.Unlock()
		return &cp, nil
	}
	r.mu.Unlock()
	return LoadRecord(ctx, r.store, r.keyer, id)
}

// Cleanup deletes the stored record and work directory of task id.
func (r *LocalRunner) Cleanup(ctx context.Context, id string) error {
	rec, err := r.Record(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Status.Done() {
		return errors.New(errors.ErrCodeInvalidInput, "task %s is still %s", id, rec.Status)
	}
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
	if err := r.store.Delete(ctx, r.keyer.ResultKey(id)); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "delete task %s", id)
	}
	if rec.WorkDir != "" {
		if err := os.RemoveAll(rec.WorkDir); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "remove work directory")
		}
	}
	return nil
}

// Close waits for every submitted task to finish.
func (r *LocalRunner) Close() error {
	return r.group.Wait()
}

// next waits for a worker slot and runs the oldest queued job. Each Submit
// starts one call, so jobs start in submission order whichever goroutine
// wins the slot.
func (r *LocalRunner) next() error {
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	r.mu.Lock()
	q := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()
	r.execute(q.ctx, q.id, q.job)
	return nil
}

func (r *LocalRunner) execute(ctx context.Context, id string, job Job) {
	r.mu.Lock()
	rec := r.tasks[id]
	rec.Status = StatusRunning
	workDir := rec.WorkDir
	running := *rec
	r.mu.Unlock()
	r.persist(ctx, running)

	req := job.Request
	req.WorkDir = workDir
	if req.Logger == nil {
		req.Logger = r.logger
	}
	req.Logger = req.Logger.With("task", id[:8])

	r.finish(ctx, id, job, r.run(ctx, job.Analysis, req))
}

// run executes one job, converting a panic into an internal error result.
func (r *LocalRunner) run(ctx context.Context, a pipeline.Analysis, req pipeline.Request) (res *pipeline.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task panicked", "analysis", a, "panic", p, "stack", string(debug.Stack()))
			res = pipeline.Failure(errors.New(errors.ErrCodeInternal, "internal error: %v", p))
		}
	}()
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return pipeline.Failure(errors.Wrap(errors.ErrCodeIO, err, "create work directory"))
	}
	return r.exec.Run(ctx, a, req)
}

func (r *LocalRunner) finish(ctx context.Context, id string, job Job, res *pipeline.Result) {
	status := StatusSuccess
	if res.Failed() {
		status = StatusFailure
	}

	r.mu.Lock()
	rec := r.tasks[id]
	rec.Status = status
	rec.Finished = time.Now().UTC()
	rec.Result = res
	done := *rec
	r.mu.Unlock()
	r.persist(ctx, done)

	observability.Task().OnTaskFinish(ctx, string(job.Analysis), string(status), done.Duration())
	if status == StatusFailure {
		r.logger.Warn("task failed", "id", id, "code", res.Code, "err", res.Error)
		return
	}
	r.logger.Debug("task finished", "id", id, "duration", done.Duration())
}

// persist writes rec to the store. Store failures are logged, not fatal:
// in-process pollers still see the in-memory record.
func (r *LocalRunner) persist(ctx context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("encode task record", "id", rec.ID, "err", err)
		return
	}
	if err := r.store.Set(ctx, r.keyer.ResultKey(rec.ID), data, r.ttl); err != nil {
		r.logger.Warn("store task record", "id", rec.ID, "status", rec.Status, "err", err)
	}
}

var _ Runner = (*LocalRunner)(nil)
