package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	glog "github.com/goliatone/go-logger/glog"
)

// QueueDispatcher publishes the envelope for asynchronous processing and
// acknowledges immediately. The provider's delivery is settled the moment
// the message is durably enqueued.
type QueueDispatcher struct {
	publisher core.Publisher
	logger    core.Logger
	Now       func() time.Time
}

func NewQueueDispatcher(publisher core.Publisher, logger core.Logger) (*QueueDispatcher, error) {
	if publisher == nil {
		return nil, core.NewConfigurationError("webhook: publisher is required for queue dispatch")
	}
	return &QueueDispatcher{
		publisher: publisher,
		logger:    glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, envelope core.Envelope) (string, error) {
	if d == nil || d.publisher == nil {
		return "", core.NewConfigurationError("webhook: queue dispatcher is not configured")
	}
	msg := core.NewProcessingMessage(envelope, d.now())
	if err := d.publisher.Publish(ctx, msg); err != nil {
		return "", core.NewQueueError(err, "webhook: enqueue processing message", map[string]any{
			"order_id": msg.OrderID,
		})
	}
	d.logger.Info("order event enqueued", "order_id", msg.OrderID, "status", msg.Status)
	return "queued for processing", nil
}

func (d *QueueDispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// InlineDispatcher runs the full processing pipeline inside the webhook
// request. The provider waits for the result, so processing errors map
// straight onto the HTTP response.
type InlineDispatcher struct {
	processor core.Processor
	logger    core.Logger
	Now       func() time.Time
}

func NewInlineDispatcher(processor core.Processor, logger core.Logger) (*InlineDispatcher, error) {
	if processor == nil {
		return nil, core.NewConfigurationError("webhook: processor is required for inline dispatch")
	}
	return &InlineDispatcher{
		processor: processor,
		logger:    glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, envelope core.Envelope) (string, error) {
	if d == nil || d.processor == nil {
		return "", core.NewConfigurationError("webhook: inline dispatcher is not configured")
	}
	msg := core.NewProcessingMessage(envelope, d.now())
	if err := d.processor.Process(ctx, msg); err != nil {
		return "", err
	}
	d.logger.Info("order event processed inline",
		"order_id", msg.OrderID,
		"status", msg.Status,
	)
	return "order " + strings.TrimSpace(msg.OrderID) + " processed", nil
}

func (d *InlineDispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
