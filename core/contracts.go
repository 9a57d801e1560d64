package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the structured logging contract used across the relay.
type Logger = glog.Logger

// LoggerProvider resolves named loggers for subsystems.
type LoggerProvider = glog.LoggerProvider

// FieldsLogger is the optional structured-fields extension of Logger.
type FieldsLogger = glog.FieldsLogger

// HTTPDoer is the outbound HTTP execution contract. *http.Client
// satisfies it; tests inject stubs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OrderFetcher retrieves the full order snapshot from the provider.
// Failures are tagged: not-found, upstream timeout, or upstream error,
// distinguishable through the core error text codes.
type OrderFetcher interface {
	FetchOrderDetails(ctx context.Context, orderID string, market string) (OrderDetails, error)
}

// Notifier is a best-effort side channel. Send failures are logged by the
// implementation and never fail the primary operation.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// OrderStore persists a fetched order snapshot: one header upsert keyed by
// order id plus one upsert per stop keyed by (order id, stop sequence),
// issued in stop order. Upserts are idempotent; there is no atomicity
// across statements.
type OrderStore interface {
	UpsertOrder(ctx context.Context, details OrderDetails) error
	GetOrder(ctx context.Context, orderID string) (OrderDetails, error)
}

// EventLedger records accepted webhook deliveries for audit.
type EventLedger interface {
	Record(ctx context.Context, envelope Envelope) (string, error)
}

// Publisher hands an envelope to the processing queue.
type Publisher interface {
	Publish(ctx context.Context, msg ProcessingMessage) error
}

// Processor consumes one processing message at a time. Returning an error
// signals the hosting queue to retry or dead-letter the delivery; no local
// retry loop exists.
type Processor interface {
	Process(ctx context.Context, msg ProcessingMessage) error
}
