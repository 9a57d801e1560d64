// Package queue bridges the relay's processing pipeline onto go-job's
// queue contracts: a publisher that enqueues completed-order events, a
// consumer loop that drives the processor with bounded retries, and an
// in-process queue for single-binary deployments and tests.
package queue

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-delivery-relay/core"
	job "github.com/goliatone/go-job"
)

// JobIDOrderProcess identifies completed-order processing messages on
// the queue.
const JobIDOrderProcess = "relay.order.process"

// Parameter keys on the execution message. The routing attributes are
// duplicated outside the body so queue tooling can filter without
// decoding the payload.
const (
	paramBody      = "body"
	paramOrderID   = "orderId"
	paramStatus    = "status"
	paramEventType = "eventType"
)

// ToExecutionMessage encodes a processing message for the queue. The
// idempotency key is the order id plus status, so a provider redelivery
// of the same transition can be deduplicated by brokers that support it.
func ToExecutionMessage(msg core.ProcessingMessage) (*job.ExecutionMessage, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, core.NewQueueError(err, "queue: encode processing message", map[string]any{
			"order_id": msg.OrderID,
		})
	}
	return &job.ExecutionMessage{
		JobID: JobIDOrderProcess,
		Parameters: map[string]any{
			paramBody:      string(body),
			paramOrderID:   strings.TrimSpace(msg.OrderID),
			paramStatus:    strings.TrimSpace(msg.Status),
			paramEventType: strings.TrimSpace(msg.EventType),
		},
		IdempotencyKey: strings.TrimSpace(msg.OrderID) + ":" + strings.TrimSpace(msg.Status),
	}, nil
}

// FromExecutionMessage decodes a queue delivery back into a processing
// message. Messages with a foreign job id or a missing body are rejected
// rather than silently dropped.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.ProcessingMessage, error) {
	if msg == nil {
		return core.ProcessingMessage{}, core.NewQueueError(nil, "queue: delivery has no message", nil)
	}
	if jobID := strings.TrimSpace(msg.JobID); jobID != "" && jobID != JobIDOrderProcess {
		return core.ProcessingMessage{}, core.NewQueueError(nil, "queue: unexpected job id", map[string]any{
			"job_id": jobID,
		})
	}
	raw, _ := msg.Parameters[paramBody].(string)
	if strings.TrimSpace(raw) == "" {
		return core.ProcessingMessage{}, core.NewQueueError(nil, "queue: message body is empty", nil)
	}
	var decoded core.ProcessingMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return core.ProcessingMessage{}, core.NewQueueError(err, "queue: decode processing message", nil)
	}
	return decoded, nil
}
