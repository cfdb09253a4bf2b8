package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"

	"github.com/huhn511/arche/workerpool"
)

// Handler consumes one queued event payload.
type Handler interface {
	Handle(ctx context.Context, metadata map[string]string, payload []byte) error
}

// Subscriber drains the locale event queue and dispatches payloads to
// its handlers on the worker pool.
type Subscriber interface {
	Init(ctx context.Context) error
	Initiated() bool
	Stop(ctx context.Context) error
}

type subscriber struct {
	url          string
	handlers     []Handler
	subscription *pubsub.Subscription
	isInit       atomic.Bool

	workManager workerpool.Manager
}

func NewSubscriber(workManager workerpool.Manager, queueURL string, handlers ...Handler) Subscriber {
	return &subscriber{
		url:         queueURL,
		handlers:    handlers,
		workManager: workManager,
	}
}

func (s *subscriber) createSubscription(ctx context.Context) error {
	if s.subscription != nil {
		return nil
	}

	if strings.TrimSpace(s.url) == "" {
		return errors.New("subscriber URL cannot be empty")
	}

	subs, err := pubsub.OpenSubscription(ctx, s.url)
	if err != nil {
		return fmt.Errorf("could not open topic subscription: %w", err)
	}
	s.subscription = subs

	return nil
}

func (s *subscriber) Init(ctx context.Context) error {
	if s.isInit.Load() && s.subscription != nil {
		return nil
	}

	err := s.createSubscription(ctx)
	if err != nil {
		return err
	}

	if len(s.handlers) > 0 {
		go s.listen(ctx)
	}

	s.isInit.Store(true)
	return nil
}

func (s *subscriber) Initiated() bool {
	return s.isInit.Load()
}

func (s *subscriber) Stop(ctx context.Context) error {
	var sctx context.Context
	var cancelFunc context.CancelFunc

	select {
	case <-ctx.Done():
		sctx = context.Background()
	default:
		sctx = ctx
	}

	sctx, cancelFunc = context.WithTimeout(sctx, time.Second*1)
	defer cancelFunc()

	s.isInit.Store(false)

	if s.subscription != nil {
		err := s.subscription.Shutdown(sctx)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *subscriber) processReceivedMessage(ctx context.Context, msg *pubsub.Message) error {
	job := workerpool.NewJob[any](func(jobCtx context.Context, _ workerpool.JobResultPipe[any]) error {
		var metadata propagation.MapCarrier = msg.Metadata

		pCtx := otel.GetTextMapPropagator().Extract(jobCtx, metadata)

		for _, handler := range s.handlers {
			err := handler.Handle(pCtx, metadata, msg.Body)
			if err != nil {
				util.Log(pCtx).WithError(err).
					WithField("url", s.url).
					Warn("could not handle message")
				msg.Nack()
				return err
			}
		}
		msg.Ack()
		return nil
	})

	submitErr := workerpool.SubmitJob[any](ctx, s.workManager, job)
	if submitErr != nil {
		msg.Nack()
		util.Log(ctx).WithError(submitErr).
			WithField("url", s.url).
			Error("could not process message, failed to submit job")
		return submitErr
	}

	return nil
}

func (s *subscriber) listen(ctx context.Context) {
	logger := util.Log(ctx).WithField("url", s.url)
	logger.Debug("starting to listen for messages")
	for {
		select {
		case <-ctx.Done():
			err := s.Stop(ctx)
			if err != nil {
				logger.WithError(err).Error("could not stop subscription")
				return
			}
			logger.Debug("exiting due to canceled context")
			return

		default:
			msg, err := s.subscription.Receive(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				logger.WithError(err).Error("could not pull message, stopping listener")
				return
			}

			if procErr := s.processReceivedMessage(ctx, msg); procErr != nil {
				logger.WithError(procErr).Error("critical error processing message, stopping listener")
				return
			}
		}
	}
}
