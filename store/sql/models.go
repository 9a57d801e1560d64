package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// orderRecord is the persisted header of a completed order, keyed by the
// provider's order id. Re-processing the same order overwrites it in place.
type orderRecord struct {
	bun.BaseModel `bun:"table:delivery_orders,alias:do"`

	OrderID      string            `bun:"order_id,pk"`
	QuotationID  string            `bun:"quotation_id"`
	Status       string            `bun:"status,notnull"`
	DriverID     string            `bun:"driver_id"`
	ShareLink    string            `bun:"share_link"`
	PriceTotal   string            `bun:"price_total"`
	Currency     string            `bun:"currency"`
	DistanceVal  string            `bun:"distance_value"`
	DistanceUnit string            `bun:"distance_unit"`
	StopCount    int               `bun:"stop_count,notnull"`
	Metadata     map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// stopRecord is one stop of an order, keyed by (order_id, stop_sequence).
// The sequence is the stop's position in the fetched order; it is the
// only stop identity the provider guarantees, so rows from a re-fetch
// land on the same keys.
type stopRecord struct {
	bun.BaseModel `bun:"table:delivery_order_stops,alias:dos"`

	OrderID            string    `bun:"order_id,pk"`
	StopSequence       int       `bun:"stop_sequence,pk"`
	Address            string    `bun:"address"`
	Name               string    `bun:"name"`
	Phone              string    `bun:"phone"`
	Lat                string    `bun:"lat"`
	Lng                string    `bun:"lng"`
	PODStatus          string    `bun:"pod_status"`
	PODImage           string    `bun:"pod_image"`
	PODDeliveredAt     string    `bun:"pod_delivered_at"`
	DeliveryCode       string    `bun:"delivery_code"`
	DeliveryCodeStatus string    `bun:"delivery_code_status"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// webhookEventRecord is one accepted webhook delivery, kept for audit.
type webhookEventRecord struct {
	bun.BaseModel `bun:"table:relay_webhook_events,alias:rwe"`

	ID        string    `bun:"id,pk"`
	OrderID   string    `bun:"order_id,notnull"`
	EventType string    `bun:"event_type,notnull"`
	Status    string    `bun:"status,notnull"`
	Market    string    `bun:"market"`
	SignedAt  time.Time `bun:"signed_at,nullzero"`
	Payload   []byte    `bun:"payload,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
