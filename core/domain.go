package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	EventOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

const (
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	StopStatusPending   = "PENDING"
	StopStatusDelivered = "DELIVERED"
	StopStatusFailed    = "FAILED"
)

// IsTerminalStatus reports whether no further status transitions are
// expected for the order.
func IsTerminalStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Envelope is the inbound webhook payload. It is immutable once received
// and exists only for the duration of a single request or queue message.
//
// Timestamp is unix seconds; the outbound signing timestamp is milliseconds.
// The asymmetry is part of the provider wire contract.
type Envelope struct {
	APIKey    string       `json:"apiKey"`
	Timestamp int64        `json:"timestamp"`
	Signature string       `json:"signature"`
	EventType string       `json:"eventType"`
	Data      EnvelopeData `json:"data"`

	// rawData holds the data block byte for byte as it arrived on the
	// wire. The provider signs those exact bytes; re-marshaling Data
	// would reorder keys and drop unmodeled fields, changing the
	// signature input.
	rawData json.RawMessage
}

type envelopeWire struct {
	APIKey    string          `json:"apiKey"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	e.APIKey = wire.APIKey
	e.Timestamp = wire.Timestamp
	e.Signature = wire.Signature
	e.EventType = wire.EventType
	e.Data = EnvelopeData{}
	e.rawData = nil
	if len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, &e.Data); err != nil {
			return err
		}
		e.rawData = append(json.RawMessage(nil), wire.Data...)
	}
	return nil
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	data := e.rawData
	if len(data) == 0 {
		encoded, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		data = encoded
	}
	return json.Marshal(envelopeWire{
		APIKey:    e.APIKey,
		Timestamp: e.Timestamp,
		Signature: e.Signature,
		EventType: e.EventType,
		Data:      data,
	})
}

type EnvelopeData struct {
	UpdatedAt string     `json:"updatedAt"`
	Order     OrderEvent `json:"order"`
}

type OrderEvent struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	Market         string `json:"market,omitempty"`
	DriverID       string `json:"driverId,omitempty"`
	PreviousStatus string `json:"previousStatus,omitempty"`
}

// DataJSON returns the data block exactly as it participates in the
// canonical signing string: the original wire bytes when the envelope
// was decoded from JSON, a fresh marshal of Data otherwise.
func (e Envelope) DataJSON() ([]byte, error) {
	if len(e.rawData) > 0 {
		return e.rawData, nil
	}
	return json.Marshal(e.Data)
}

// OrderDetails is the read-only snapshot fetched from the provider for a
// terminal order. Stops are positionally significant: the slice index is
// the stop sequence used as a persistence key, so stops must never be
// reordered, deduplicated, or filtered.
type OrderDetails struct {
	OrderID        string            `json:"orderId"`
	QuotationID    string            `json:"quotationId"`
	PriceBreakdown PriceBreakdown    `json:"priceBreakdown"`
	DriverID       string            `json:"driverId"`
	ShareLink      string            `json:"shareLink"`
	Status         string            `json:"status"`
	Distance       Distance          `json:"distance"`
	Stops          []Stop            `json:"stops"`
	Metadata       map[string]string `json:"metadata"`
}

type PriceBreakdown struct {
	Base                    string `json:"base"`
	SpecialRequests         string `json:"specialRequests"`
	PriorityFee             string `json:"priorityFee,omitempty"`
	MultiStopSurcharge      string `json:"multiStopSurcharge"`
	TotalExcludePriorityFee string `json:"totalExcludePriorityFee"`
	Total                   string `json:"total"`
	Currency                string `json:"currency"`
}

type Distance struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

type Coordinates struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

type Stop struct {
	Coordinates  Coordinates      `json:"coordinates"`
	Address      string           `json:"address"`
	Name         string           `json:"name"`
	Phone        string           `json:"phone"`
	POD          *ProofOfDelivery `json:"POD,omitempty"`
	DeliveryCode DeliveryCode     `json:"delivery_code"`
}

type ProofOfDelivery struct {
	Status      string `json:"status"`
	Image       string `json:"image,omitempty"`
	DeliveredAt string `json:"deliveredAt,omitempty"`
}

type DeliveryCode struct {
	Value  string `json:"value"`
	Status string `json:"status"`
}

// ProcessingMessage wraps an Envelope for asynchronous processing. It is
// created by the webhook receiver and consumed by the queue processor.
// Delivery is at-least-once; consumers must tolerate duplicates.
type ProcessingMessage struct {
	OrderID     string   `json:"orderId"`
	Status      string   `json:"status"`
	EventType   string   `json:"eventType"`
	EnqueuedAt  int64    `json:"timestamp"`
	WebhookData Envelope `json:"webhookData"`
}

// NewProcessingMessage echoes the envelope's routing attributes so the
// queue layer can filter without decoding the body.
func NewProcessingMessage(envelope Envelope, now time.Time) ProcessingMessage {
	return ProcessingMessage{
		OrderID:     strings.TrimSpace(envelope.Data.Order.OrderID),
		Status:      strings.TrimSpace(envelope.Data.Order.Status),
		EventType:   strings.TrimSpace(envelope.EventType),
		EnqueuedAt:  now.UTC().UnixMilli(),
		WebhookData: envelope,
	}
}
