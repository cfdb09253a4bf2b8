package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/workerpool"
)

func newTestManager(t *testing.T) workerpool.Manager {
	t.Helper()

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	require.NoError(t, err)

	mgr, err := workerpool.NewManager(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })
	return mgr
}

func TestSubmitJobDeliversResults(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	job := workerpool.NewJob[int](func(ctx context.Context, pipe workerpool.JobResultPipe[int]) error {
		for i := range 5 {
			if err := pipe.WriteResult(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, workerpool.SubmitJob(ctx, mgr, job))

	var got []int
	err := workerpool.ConsumeResultStream(ctx, job, func(v int) {
		got = append(got, v)
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSubmitJobPropagatesError(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	boom := errors.New("boom")
	job := workerpool.NewJob[int](func(_ context.Context, _ workerpool.JobResultPipe[int]) error {
		return boom
	})

	require.NoError(t, workerpool.SubmitJob(ctx, mgr, job))

	err := workerpool.ConsumeResultStream(ctx, job, func(int) {})
	require.ErrorIs(t, err, boom)
}

func TestSubmitJobRetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	var attempts atomic.Int64
	boom := errors.New("boom")
	job := workerpool.NewJobWithRetry[string](func(ctx context.Context, pipe workerpool.JobResultPipe[string]) error {
		if attempts.Add(1) < 3 {
			return boom
		}
		return pipe.WriteResult(ctx, "done")
	}, 3)

	require.NoError(t, workerpool.SubmitJob(ctx, mgr, job))

	var got []string
	err := workerpool.ConsumeResultStream(ctx, job, func(v string) {
		got = append(got, v)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"done"}, got)
	require.EqualValues(t, 3, attempts.Load())
}

func TestSubmitJobHonoursCancelledContext(t *testing.T) {
	mgr := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := workerpool.NewJob[int](func(_ context.Context, _ workerpool.JobResultPipe[int]) error {
		return nil
	})
	err := workerpool.SubmitJob(ctx, mgr, job)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConsumeResultStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := workerpool.NewJob[int](nil)

	done := make(chan error, 1)
	go func() {
		done <- workerpool.ConsumeResultStream(ctx, job, func(int) {})
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not observe cancellation")
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	job := workerpool.NewJob[string](nil)
	job.Close()

	err := job.WriteResult(ctx, "late")
	require.ErrorIs(t, err, workerpool.ErrWorkerPoolResultChannelIsClosed)
}
