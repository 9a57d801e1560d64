package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	job "github.com/goliatone/go-job"
	gojobqueue "github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// RetryPolicy bounds redelivery of failed processing messages so a
// poisoned message cannot loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	RetryDelay      time.Duration
	DeadLetterOnMax bool
}

// DefaultRetryPolicy mirrors the queue defaults in core.DefaultConfig.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     8,
		RetryDelay:      5 * time.Second,
		DeadLetterOnMax: true,
	}
}

// NackFor resolves the nack options for a failed attempt. Attempts are
// 1-based; once MaxAttempts is reached the message stops requeuing and,
// when DeadLetterOnMax is set, moves to the dead-letter queue.
func (p RetryPolicy) NackFor(attempt int, err error) gojobqueue.NackOptions {
	opts := gojobqueue.NackOptions{
		Delay:   p.RetryDelay,
		Requeue: true,
		Reason:  reasonFor(err),
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		opts.Requeue = false
		opts.DeadLetter = p.DeadLetterOnMax
	}
	return opts
}

func reasonFor(err error) string {
	if err == nil {
		return ""
	}
	reason := strings.TrimSpace(err.Error())
	if len(reason) > 256 {
		reason = reason[:256]
	}
	return reason
}

// Consumer pulls processing messages from a go-job dequeuer and drives
// the processor. One message is in flight at a time; the queue itself
// provides parallelism by running multiple consumers.
type Consumer struct {
	dequeuer  gojobqueue.Dequeuer
	processor core.Processor
	policy    RetryPolicy
	hook      worker.Hook
	logger    core.Logger

	mu       sync.Mutex
	attempts map[string]int
}

type ConsumerOption func(*Consumer)

func WithRetryPolicy(policy RetryPolicy) ConsumerOption {
	return func(c *Consumer) {
		c.policy = policy
	}
}

// WithWorkerHook observes message lifecycle events.
func WithWorkerHook(hook worker.Hook) ConsumerOption {
	return func(c *Consumer) {
		c.hook = hook
	}
}

func WithConsumerLogger(logger core.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = glog.Ensure(logger)
	}
}

func NewConsumer(dequeuer gojobqueue.Dequeuer, processor core.Processor, options ...ConsumerOption) (*Consumer, error) {
	if dequeuer == nil {
		return nil, core.NewConfigurationError("queue: dequeuer is required")
	}
	if processor == nil {
		return nil, core.NewConfigurationError("queue: processor is required")
	}
	consumer := &Consumer{
		dequeuer:  dequeuer,
		processor: processor,
		policy:    DefaultRetryPolicy(),
		logger:    glog.Nop(),
		attempts:  map[string]int{},
	}
	for _, option := range options {
		option(consumer)
	}
	return consumer, nil
}

// Run consumes until the context is cancelled. Dequeue errors other than
// cancellation are logged and retried after a short pause.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.processor == nil {
		return core.NewConfigurationError("queue: consumer is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := c.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, delivery)
	}
}

func (c *Consumer) handle(ctx context.Context, delivery gojobqueue.Delivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	attempt := c.nextAttempt(msg)
	startedAt := time.Now()

	c.emit(ctx, func(h worker.Hook, e worker.Event) { h.OnStart(ctx, e) }, worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: startedAt,
	})

	decoded, err := FromExecutionMessage(msg)
	if err == nil {
		err = c.processor.Process(ctx, decoded)
	}
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		Err:       err,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}

	if err == nil {
		c.clearAttempts(msg)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			c.logger.Error("ack failed", "error", ackErr)
		}
		c.emit(ctx, func(h worker.Hook, e worker.Event) { h.OnSuccess(ctx, e) }, event)
		return
	}

	opts := c.policy.NackFor(attempt, err)
	event.Delay = opts.Delay
	c.logger.Error("message processing failed",
		"error", err,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
	)
	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		c.logger.Error("nack failed", "error", nackErr)
	}
	if opts.Requeue {
		c.emit(ctx, func(h worker.Hook, e worker.Event) { h.OnRetry(ctx, e) }, event)
		return
	}
	c.clearAttempts(msg)
	c.emit(ctx, func(h worker.Hook, e worker.Event) { h.OnFailure(ctx, e) }, event)
}

func (c *Consumer) emit(_ context.Context, fn func(worker.Hook, worker.Event), event worker.Event) {
	if c == nil || c.hook == nil {
		return
	}
	fn(c.hook, event)
}

func (c *Consumer) nextAttempt(msg *job.ExecutionMessage) int {
	key := attemptKey(msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Consumer) clearAttempts(msg *job.ExecutionMessage) {
	key := attemptKey(msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}
