package events

import (
	"context"
	"time"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche/localization"
	"github.com/huhn511/arche/workerpool"
)

// PublishingObserver forwards resolution outcomes onto the event queue.
// Publishing happens on the worker pool so the resolve path never waits
// on the queue.
type PublishingObserver struct {
	publisher   Publisher
	workManager workerpool.Manager
	next        localization.Observer
}

func NewPublishingObserver(
	publisher Publisher,
	workManager workerpool.Manager,
	next localization.Observer,
) *PublishingObserver {
	if next == nil {
		next = localization.NoopObserver{}
	}

	return &PublishingObserver{
		publisher:   publisher,
		workManager: workManager,
		next:        next,
	}
}

func (o *PublishingObserver) OnLanguageFallback(ctx context.Context, requestedLang, resolvedLang, code string) {
	o.next.OnLanguageFallback(ctx, requestedLang, resolvedLang, code)

	o.publish(ctx, EventTypeLanguageFallback, &LanguageFallbackEvent{
		RequestedLang: requestedLang,
		ResolvedLang:  resolvedLang,
		Code:          code,
		OccurredAt:    time.Now().UTC(),
	})
}

func (o *PublishingObserver) OnMessageMissing(ctx context.Context, lang, code string) {
	o.next.OnMessageMissing(ctx, lang, code)

	o.publish(ctx, EventTypeMissingTranslation, &MissingTranslationEvent{
		Lang:       lang,
		Code:       code,
		OccurredAt: time.Now().UTC(),
	})
}

const publishRetries = 2

func (o *PublishingObserver) publish(ctx context.Context, eventType string, payload any) {
	job := workerpool.NewJobWithRetry[any](func(jobCtx context.Context, _ workerpool.JobResultPipe[any]) error {
		return o.publisher.Publish(jobCtx, payload, map[string]string{EventTypeHeader: eventType})
	}, publishRetries)

	// The event must survive the request that triggered it.
	detached := context.WithoutCancel(ctx)
	if err := workerpool.SubmitJob[any](detached, o.workManager, job); err != nil {
		util.Log(ctx).WithError(err).
			WithField("event", eventType).
			Warn("could not queue locale event")
	}
}
