package events

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"github.com/huhn511/arche/internal"
)

// Publisher pushes locale events onto the configured queue.
type Publisher interface {
	Init(ctx context.Context) error
	Initiated() bool
	Publish(ctx context.Context, payload any, headers ...map[string]string) error
	Stop(ctx context.Context) error
}

type publisher struct {
	url string
	// topic is read by concurrent Publish calls while Stop clears it.
	topic  atomic.Pointer[pubsub.Topic]
	isInit atomic.Bool
}

func NewPublisher(queueURL string) Publisher {
	return &publisher{url: queueURL}
}

func (p *publisher) Publish(ctx context.Context, payload any, headers ...map[string]string) error {
	metadata := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, metadata)

	for _, h := range headers {
		maps.Copy(metadata, h)
	}

	message, err := internal.Marshal(payload)
	if err != nil {
		return err
	}

	topic := p.topic.Load()
	if topic == nil {
		return errors.New("publisher is not initialized")
	}

	return topic.Send(ctx, &pubsub.Message{
		Body:     message,
		Metadata: metadata,
	})
}

func (p *publisher) Init(ctx context.Context) error {
	if p.isInit.Load() && p.topic.Load() != nil {
		return nil
	}

	topic, err := pubsub.OpenTopic(ctx, p.url)
	if err != nil {
		return err
	}

	p.topic.Store(topic)
	p.isInit.Store(true)
	return nil
}

func (p *publisher) Initiated() bool {
	return p.isInit.Load()
}

const defaultPublisherShutdownTimeoutSeconds = 30

func (p *publisher) Stop(ctx context.Context) error {
	var sctx context.Context
	var cancelFunc context.CancelFunc

	select {
	case <-ctx.Done():
		sctx = context.Background()
	default:
		sctx = ctx
	}

	sctx, cancelFunc = context.WithTimeout(sctx, time.Second*defaultPublisherShutdownTimeoutSeconds)
	defer cancelFunc()

	p.isInit.Store(false)

	topic := p.topic.Swap(nil)
	if topic == nil {
		return nil
	}

	// mem:// driver is process-local and shared by URL. Shutting it down here can poison
	// subsequent in-process users of the same topic URL (common in tests).
	if strings.HasPrefix(strings.ToLower(p.url), "mem://") {
		return nil
	}

	err := topic.Shutdown(sctx)
	if err != nil && !isTopicAlreadyShutdownErr(err) {
		return err
	}
	return nil
}

func isTopicAlreadyShutdownErr(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(strings.ToLower(err.Error()), "topic has been shutdown")
}
