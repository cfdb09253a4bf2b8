package workerpool

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"

	"github.com/huhn511/arche/config"
)

// WorkerPool defines the common methods for worker pool operations.
// It can be backed by a single ants.Pool or an ants.MultiPool.
type WorkerPool interface {
	Submit(ctx context.Context, task func()) error
	Shutdown()
}

type Manager interface {
	GetPool() (WorkerPool, error)
	Shutdown(ctx context.Context)
}

type manager struct {
	pool WorkerPool
}

// NewManager builds a worker pool manager sized from configuration.
func NewManager(ctx context.Context, cfg config.ConfigurationWorkerPool) (Manager, error) {
	log := util.Log(ctx)

	pool, err := setupWorkerPool(cfg, log)
	if err != nil {
		return nil, err
	}

	return &manager{pool: pool}, nil
}

func (m *manager) GetPool() (WorkerPool, error) {
	if m.pool == nil {
		return nil, errors.New("worker pool is not configured")
	}
	return m.pool, nil
}

func (m *manager) Shutdown(_ context.Context) {
	if m.pool != nil {
		m.pool.Shutdown()
	}
}

func setupWorkerPool(cfg config.ConfigurationWorkerPool, log *util.LogEntry) (WorkerPool, error) {
	concurrency := runtime.NumCPU() * cfg.GetCPUFactor()

	antsOpts := []ants.Option{
		ants.WithNonblocking(false),
		ants.WithLogger(log),
	}
	if cfg.GetExpiryDuration() > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(cfg.GetExpiryDuration()))
	}
	if concurrency > 0 {
		antsOpts = append(antsOpts, ants.WithMaxBlockingTasks(concurrency))
	}

	if cfg.GetCount() <= 1 {
		p, err := ants.NewPool(cfg.GetCapacity(), antsOpts...)
		if err != nil {
			return nil, err
		}
		return &singlePoolWrapper{pool: p}, nil
	}

	mp, err := ants.NewMultiPool(cfg.GetCount(), cfg.GetCapacity(), ants.LeastTasks, antsOpts...)
	if err != nil {
		return nil, err
	}
	return &multiPoolWrapper{multiPool: mp}, nil
}

// singlePoolWrapper adapts *ants.Pool to the WorkerPool interface.
type singlePoolWrapper struct {
	pool *ants.Pool
}

func (w *singlePoolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.pool.Submit(task)
}

func (w *singlePoolWrapper) Shutdown() {
	w.pool.Release()
}

// multiPoolWrapper adapts *ants.MultiPool to the WorkerPool interface.
type multiPoolWrapper struct {
	multiPool *ants.MultiPool
}

func (w *multiPoolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.multiPool.Submit(task)
}

func (w *multiPoolWrapper) Shutdown() {
	const drainTimeout = 5 * time.Second
	_ = w.multiPool.ReleaseTimeout(drainTimeout)
}

const (
	jobRetryBackoffBaseDelay    = 100 * time.Millisecond
	jobRetryBackoffMaxDelay     = 5 * time.Second
	jobRetryBackoffMaxRunNumber = 6
)

func shouldCloseJob(executionErr error) bool {
	return executionErr == nil || errors.Is(executionErr, context.Canceled) ||
		errors.Is(executionErr, ErrWorkerPoolResultChannelIsClosed)
}

func jobRetryBackoffDelay(run int) time.Duration {
	if run < 1 {
		run = 1
	}
	if run > jobRetryBackoffMaxRunNumber {
		run = jobRetryBackoffMaxRunNumber
	}

	delay := jobRetryBackoffBaseDelay * time.Duration(1<<(run-1))
	if delay > jobRetryBackoffMaxDelay {
		return jobRetryBackoffMaxDelay
	}
	return delay
}

// SubmitJob used to submit jobs to the worker pool for processing.
// Once a job is submitted the caller only needs to drain its ResultChan.
// Failed jobs with retry budget are resubmitted with exponential backoff.
func SubmitJob[T any](ctx context.Context, m Manager, job Job[T]) error {
	if m == nil {
		return errors.New("worker pool manager is nil")
	}

	pool, err := m.GetPool()
	if err != nil {
		return err
	}

	task := func() {
		log := util.Log(ctx).WithField("job", job.ID()).WithField("run", job.Runs())

		job.IncreaseRuns()
		executionErr := job.F()(ctx, job)
		if shouldCloseJob(executionErr) {
			job.Close()
			return
		}

		log = log.WithError(executionErr)
		if !job.CanRun() {
			log.Error("job failed, retries exhausted")
			_ = job.WriteError(ctx, executionErr)
			job.Close()
			return
		}

		log.Warn("job failed, retrying")
		scheduleRetryResubmission(ctx, m, job, jobRetryBackoffDelay(job.Runs()))
	}

	return pool.Submit(ctx, task)
}

func scheduleRetryResubmission[T any](ctx context.Context, m Manager, job Job[T], delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			job.Close()
			return
		case <-timer.C:
		}

		if err := SubmitJob(ctx, m, job); err != nil {
			_ = job.WriteError(ctx, err)
			job.Close()
		}
	}()
}
