package events_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/events"
	"github.com/huhn511/arche/workerpool"
)

var queueCounter atomic.Int64

// uniqueQueueURL hands out a fresh in-memory queue per test so topics
// never leak between them.
func uniqueQueueURL() string {
	return fmt.Sprintf("mem://locale.events.%d", queueCounter.Add(1))
}

func newTestWorkManager(t *testing.T) workerpool.Manager {
	t.Helper()

	cfg := &config.ConfigurationDefault{
		WorkerPoolCapacity:       10,
		WorkerPoolCount:          1,
		WorkerPoolExpiryDuration: "1s",
	}

	manager, err := workerpool.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	return manager
}

func waitForSnapshot(t *testing.T, recorder *events.MissingTranslationRecorder, key string) int64 {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		if count, ok := recorder.Snapshot()[key]; ok {
			return count
		}

		select {
		case <-deadline:
			t.Fatalf("no event recorded for %s", key)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMissingTranslationEventRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url := uniqueQueueURL()
	workManager := newTestWorkManager(t)

	publisher := events.NewPublisher(url)
	require.NoError(t, publisher.Init(ctx))
	t.Cleanup(func() { _ = publisher.Stop(context.Background()) })

	recorder := events.NewMissingTranslationRecorder()
	subscriber := events.NewSubscriber(workManager, url, recorder)
	require.NoError(t, subscriber.Init(ctx))
	require.True(t, subscriber.Initiated())

	observer := events.NewPublishingObserver(publisher, workManager, nil)
	observer.OnMessageMissing(ctx, "sw", "greeting")

	require.Equal(t, int64(1), waitForSnapshot(t, recorder, "sw/greeting"))
}

func TestFallbackEventsDoNotCountAsMissing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url := uniqueQueueURL()
	workManager := newTestWorkManager(t)

	publisher := events.NewPublisher(url)
	require.NoError(t, publisher.Init(ctx))
	t.Cleanup(func() { _ = publisher.Stop(context.Background()) })

	recorder := events.NewMissingTranslationRecorder()
	subscriber := events.NewSubscriber(workManager, url, recorder)
	require.NoError(t, subscriber.Init(ctx))

	observer := events.NewPublishingObserver(publisher, workManager, nil)
	observer.OnLanguageFallback(ctx, "en-US", "en", "greeting")
	observer.OnMessageMissing(ctx, "xx", "farewell")

	require.Equal(t, int64(1), waitForSnapshot(t, recorder, "xx/farewell"))
	require.Len(t, recorder.Snapshot(), 1)
}

func TestPublishWithoutInitFails(t *testing.T) {
	t.Parallel()

	publisher := events.NewPublisher(uniqueQueueURL())
	err := publisher.Publish(context.Background(), &events.MissingTranslationEvent{Lang: "en", Code: "x"})
	require.Error(t, err)
	require.False(t, publisher.Initiated())
}

// Publish calls racing a shutdown either send or report an uninitialized
// publisher; they never observe a half-cleared topic.
func TestPublishDuringStopIsSafe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	publisher := events.NewPublisher(uniqueQueueURL())
	require.NoError(t, publisher.Init(ctx))

	unexpected := make(chan error, 8)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				err := publisher.Publish(ctx, &events.MissingTranslationEvent{Lang: "en", Code: "x"})
				if err != nil {
					if !strings.Contains(err.Error(), "not initialized") {
						unexpected <- err
					}
					return
				}
			}
		}()
	}

	require.NoError(t, publisher.Stop(ctx))
	wg.Wait()
	close(unexpected)
	for err := range unexpected {
		t.Errorf("publish failed with %v", err)
	}

	err := publisher.Publish(ctx, &events.MissingTranslationEvent{Lang: "en", Code: "x"})
	require.Error(t, err)
}
