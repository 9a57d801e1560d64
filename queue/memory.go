package queue

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	job "github.com/goliatone/go-job"
	gojobqueue "github.com/goliatone/go-job/queue"
)

// Memory is an in-process queue implementing go-job's Enqueuer and
// Dequeuer. It backs single-binary deployments where webhook receipt and
// processing run in the same process, and the consumer tests. Delivery
// is at-least-once: a nacked message with Requeue set comes back after
// its delay.
type Memory struct {
	messages chan *job.ExecutionMessage

	mu         sync.Mutex
	deadLetter []*job.ExecutionMessage
	closed     bool
}

const defaultMemoryCapacity = 256

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{
		messages: make(chan *job.ExecutionMessage, capacity),
	}
}

func (m *Memory) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if m == nil {
		return core.NewQueueError(nil, "queue: memory queue is not configured", nil)
	}
	if msg == nil {
		return core.NewQueueError(nil, "queue: execution message is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case m.messages <- msg:
		return nil
	case <-ctx.Done():
		return core.NewQueueError(ctx.Err(), "queue: enqueue cancelled", nil)
	default:
		return core.NewQueueError(nil, "queue: memory queue is full", map[string]any{
			"capacity": cap(m.messages),
		})
	}
}

func (m *Memory) Dequeue(ctx context.Context) (gojobqueue.Delivery, error) {
	if m == nil {
		return nil, core.NewQueueError(nil, "queue: memory queue is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case msg := <-m.messages:
		return &memoryDelivery{queue: m, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns a snapshot of dead-lettered messages.
func (m *Memory) DeadLetters() []*job.ExecutionMessage {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*job.ExecutionMessage, len(m.deadLetter))
	copy(out, m.deadLetter)
	return out
}

// Len reports the number of messages currently waiting.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	return len(m.messages)
}

func (m *Memory) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	if m == nil || msg == nil {
		return
	}
	if delay <= 0 {
		m.redeliver(msg)
		return
	}
	time.AfterFunc(delay, func() {
		m.redeliver(msg)
	})
}

// redeliver puts a nacked message back on the channel. When the queue is
// full the message moves to the dead letter list instead; a requeued
// message is never dropped.
func (m *Memory) redeliver(msg *job.ExecutionMessage) {
	select {
	case m.messages <- msg:
	default:
		m.bury(msg)
	}
}

func (m *Memory) bury(msg *job.ExecutionMessage) {
	if m == nil || msg == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetter = append(m.deadLetter, msg)
}

type memoryDelivery struct {
	queue   *Memory
	msg     *job.ExecutionMessage
	mu      sync.Mutex
	settled bool
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	if d == nil {
		return nil
	}
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	if d == nil {
		return core.NewQueueError(nil, "queue: delivery is not configured", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return core.NewQueueError(nil, "queue: delivery already settled", nil)
	}
	d.settled = true
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts gojobqueue.NackOptions) error {
	if d == nil {
		return core.NewQueueError(nil, "queue: delivery is not configured", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return core.NewQueueError(nil, "queue: delivery already settled", nil)
	}
	d.settled = true
	switch {
	case opts.Requeue:
		d.queue.requeue(d.msg, opts.Delay)
	case opts.DeadLetter:
		d.queue.bury(d.msg)
	}
	return nil
}

var (
	_ gojobqueue.Enqueuer = (*Memory)(nil)
	_ gojobqueue.Dequeuer = (*Memory)(nil)
	_ gojobqueue.Delivery = (*memoryDelivery)(nil)
)
