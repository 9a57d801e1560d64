package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookEventStore records accepted webhook deliveries for audit. It is
// append-only; rows are never updated.
type WebhookEventStore struct {
	repo repository.Repository[*webhookEventRecord]
	Now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	if db == nil {
		return nil, core.NewConfigurationError("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, core.NewConfigurationError("sqlstore: invalid webhook event repository wiring")
		}
	}
	return &WebhookEventStore{
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Record stores one accepted envelope and returns the ledger row id.
func (s *WebhookEventStore) Record(ctx context.Context, envelope core.Envelope) (string, error) {
	if s == nil || s.repo == nil {
		return "", core.NewPersistenceError(nil, "sqlstore: webhook event store is not configured", nil)
	}
	payload, err := envelope.DataJSON()
	if err != nil {
		return "", core.NewBadInputError("sqlstore: encode webhook payload", nil)
	}
	record := &webhookEventRecord{
		ID:        uuid.NewString(),
		OrderID:   strings.TrimSpace(envelope.Data.Order.OrderID),
		EventType: strings.TrimSpace(envelope.EventType),
		Status:    strings.TrimSpace(envelope.Data.Order.Status),
		Market:    strings.TrimSpace(envelope.Data.Order.Market),
		SignedAt:  time.Unix(envelope.Timestamp, 0).UTC(),
		Payload:   payload,
		CreatedAt: s.now(),
	}
	if _, err := s.repo.Create(ctx, record); err != nil {
		return "", core.NewPersistenceError(err, "sqlstore: insert webhook event", map[string]any{
			"order_id": record.OrderID,
		})
	}
	return record.ID, nil
}

// EventsForOrder lists recorded deliveries for one order, newest first.
func (s *WebhookEventStore) EventsForOrder(ctx context.Context, orderID string, limit int) ([]core.Envelope, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewPersistenceError(nil, "sqlstore: webhook event store is not configured", nil)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, core.NewBadInputError("sqlstore: order id is required", nil)
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("order_id", "=", orderID),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, core.NewPersistenceError(err, "sqlstore: select webhook events", map[string]any{
			"order_id": orderID,
		})
	}
	envelopes := make([]core.Envelope, 0, len(records))
	for _, record := range records {
		envelopes = append(envelopes, core.Envelope{
			Timestamp: record.SignedAt.Unix(),
			EventType: record.EventType,
			Data: core.EnvelopeData{
				Order: core.OrderEvent{
					OrderID: record.OrderID,
					Status:  record.Status,
					Market:  record.Market,
				},
			},
		})
	}
	return envelopes, nil
}

func (s *WebhookEventStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.EventLedger = (*WebhookEventStore)(nil)
