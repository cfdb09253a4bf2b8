package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"
)

const defaultJobResultBufferSize = 10

var ErrWorkerPoolResultChannelIsClosed = errors.New("worker job is already closed")

// JobResult represents the result of a job execution, either a value of type T or an error.
type JobResult[T any] interface {
	IsError() bool
	Error() error
	Item() T
}

// JobResultPipe is a channel-based pipeline for passing job results.
type JobResultPipe[T any] interface {
	ResultChan() <-chan JobResult[T]
	WriteError(ctx context.Context, val error) error
	WriteResult(ctx context.Context, val T) error
	ReadResult(ctx context.Context) (JobResult[T], bool)
	Close()
}

// Job represents a task that can be executed and produce results of type T.
type Job[T any] interface {
	JobResultPipe[T]
	F() func(ctx context.Context, result JobResultPipe[T]) error
	ID() string
	CanRun() bool
	Retries() int
	Runs() int
	IncreaseRuns()
}

// jobResult is the internal implementation of JobResult.
type jobResult[T any] struct {
	item  T
	error error
}

func (j *jobResult[T]) IsError() bool {
	return j.error != nil
}

func (j *jobResult[T]) Error() error {
	return j.error
}

func (j *jobResult[T]) Item() T {
	return j.item
}

func Result[T any](item T) JobResult[T] {
	return &jobResult[T]{item: item}
}

func ErrorResult[T any](err error) JobResult[T] {
	return &jobResult[T]{error: err}
}

// JobImpl is the concrete implementation of a Job.
type JobImpl[T any] struct {
	id             string
	runs           atomic.Int64
	retries        int
	resultChan     chan JobResult[T]
	resultChanDone atomic.Bool
	processFunc    func(ctx context.Context, result JobResultPipe[T]) error
}

func (ji *JobImpl[T]) ID() string {
	return ji.id
}

// CanRun reports whether the job still has retry budget left.
func (ji *JobImpl[T]) CanRun() bool {
	return ji.Retries() >= ji.Runs()
}

func (ji *JobImpl[T]) Retries() int {
	return ji.retries
}

func (ji *JobImpl[T]) Runs() int {
	return int(ji.runs.Load())
}

func (ji *JobImpl[T]) IncreaseRuns() {
	ji.runs.Add(1)
}

func (ji *JobImpl[T]) F() func(ctx context.Context, result JobResultPipe[T]) error {
	return ji.processFunc
}

func (ji *JobImpl[T]) ResultChan() <-chan JobResult[T] {
	return ji.resultChan
}

func (ji *JobImpl[T]) ReadResult(ctx context.Context) (JobResult[T], bool) {
	return SafeChannelRead(ctx, ji.resultChan)
}

func (ji *JobImpl[T]) WriteError(ctx context.Context, val error) error {
	if ji.resultChanDone.Load() {
		return ErrWorkerPoolResultChannelIsClosed
	}
	return SafeChannelWrite(ctx, ji.resultChan, ErrorResult[T](val))
}

func (ji *JobImpl[T]) WriteResult(ctx context.Context, val T) error {
	if ji.resultChanDone.Load() {
		return ErrWorkerPoolResultChannelIsClosed
	}
	return SafeChannelWrite(ctx, ji.resultChan, Result[T](val))
}

func (ji *JobImpl[T]) Close() {
	if ji.resultChanDone.CompareAndSwap(false, true) {
		close(ji.resultChan)
	}
}

// NewJob creates a new job with the default buffer size and no retries.
func NewJob[T any](process func(ctx context.Context, result JobResultPipe[T]) error) Job[T] {
	return NewJobWithRetry[T](process, 0)
}

// NewJobWithRetry creates a job that is resubmitted up to retries times on failure.
func NewJobWithRetry[T any](process func(ctx context.Context, result JobResultPipe[T]) error, retries int) Job[T] {
	return newJob[T](process, retries, defaultJobResultBufferSize)
}

// NewJobWithBuffer creates a new job with a specified buffer size.
func NewJobWithBuffer[T any](process func(ctx context.Context, result JobResultPipe[T]) error, buffer int) Job[T] {
	return newJob[T](process, 0, buffer)
}

func newJob[T any](process func(ctx context.Context, result JobResultPipe[T]) error, retries, buffer int) Job[T] {
	if buffer <= 0 {
		buffer = defaultJobResultBufferSize
	}
	if retries < 0 {
		retries = 0
	}
	return &JobImpl[T]{
		id:          xid.New().String(),
		retries:     retries,
		resultChan:  make(chan JobResult[T], buffer),
		processFunc: process,
	}
}

// SafeChannelWrite writes a value to a channel, returning an error if the context is canceled.
func SafeChannelWrite[T any](ctx context.Context, ch chan<- JobResult[T], value JobResult[T]) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled while writing to channel: %w", ctx.Err())
	default:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled while writing to channel: %w", ctx.Err())
	case ch <- value:
		return nil
	}
}

// SafeChannelRead reads a value from a channel, returning false if the channel is closed or the context is canceled.
func SafeChannelRead[T any](ctx context.Context, ch <-chan JobResult[T]) (JobResult[T], bool) {
	select {
	case <-ctx.Done():
		var zero JobResult[T]
		return zero, false
	default:
	}

	select {
	case <-ctx.Done():
		var zero JobResult[T]
		return zero, false
	case result, ok := <-ch:
		return result, ok
	}
}

// ConsumeResultStream drains a job's results, invoking consumer for every item
// until the stream closes or errors.
func ConsumeResultStream[T any](ctx context.Context, job JobResultPipe[T], consumer func(T)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			res, ok := job.ReadResult(ctx)
			if !ok {
				return nil
			}

			if res.IsError() {
				return res.Error()
			}

			consumer(res.Item())
		}
	}
}
