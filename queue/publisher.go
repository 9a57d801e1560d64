package queue

import (
	"context"

	"github.com/goliatone/go-delivery-relay/core"
	gojobqueue "github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
)

// Publisher enqueues processing messages. It satisfies core.Publisher
// over any go-job enqueuer, broker-backed or in-process.
type Publisher struct {
	enqueuer gojobqueue.Enqueuer
	logger   core.Logger
}

func NewPublisher(enqueuer gojobqueue.Enqueuer, logger core.Logger) (*Publisher, error) {
	if enqueuer == nil {
		return nil, core.NewConfigurationError("queue: enqueuer is required")
	}
	return &Publisher{
		enqueuer: enqueuer,
		logger:   glog.Ensure(logger),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg core.ProcessingMessage) error {
	if p == nil || p.enqueuer == nil {
		return core.NewConfigurationError("queue: publisher is not configured")
	}
	encoded, err := ToExecutionMessage(msg)
	if err != nil {
		return err
	}
	if err := p.enqueuer.Enqueue(ctx, encoded); err != nil {
		return core.NewQueueError(err, "queue: enqueue failed", map[string]any{
			"order_id": msg.OrderID,
		})
	}
	p.logger.Debug("processing message enqueued", "order_id", msg.OrderID, "status", msg.Status)
	return nil
}

var _ core.Publisher = (*Publisher)(nil)
