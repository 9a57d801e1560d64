package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/uptrace/bun"
)

// OrderStore persists completed-order snapshots. Every write is an
// upsert: the header on order_id, each stop on (order_id, stop_sequence).
// Statements are not wrapped in a transaction; a partial failure leaves
// earlier rows in place and the retry overwrites them.
type OrderStore struct {
	db  *bun.DB
	Now func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, core.NewConfigurationError("sqlstore: bun db is required")
	}
	return &OrderStore{
		db: db,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *OrderStore) UpsertOrder(ctx context.Context, details core.OrderDetails) error {
	if s == nil || s.db == nil {
		return core.NewPersistenceError(nil, "sqlstore: order store is not configured", nil)
	}
	orderID := strings.TrimSpace(details.OrderID)
	if orderID == "" {
		return core.NewBadInputError("sqlstore: order id is required", nil)
	}
	now := s.now()

	header := &orderRecord{
		OrderID:      orderID,
		QuotationID:  strings.TrimSpace(details.QuotationID),
		Status:       strings.TrimSpace(details.Status),
		DriverID:     strings.TrimSpace(details.DriverID),
		ShareLink:    strings.TrimSpace(details.ShareLink),
		PriceTotal:   strings.TrimSpace(details.PriceBreakdown.Total),
		Currency:     strings.TrimSpace(details.PriceBreakdown.Currency),
		DistanceVal:  strings.TrimSpace(details.Distance.Value),
		DistanceUnit: strings.TrimSpace(details.Distance.Unit),
		StopCount:    len(details.Stops),
		Metadata:     details.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.NewInsert().
		Model(header).
		On("CONFLICT (order_id) DO UPDATE").
		Set("quotation_id = EXCLUDED.quotation_id").
		Set("status = EXCLUDED.status").
		Set("driver_id = EXCLUDED.driver_id").
		Set("share_link = EXCLUDED.share_link").
		Set("price_total = EXCLUDED.price_total").
		Set("currency = EXCLUDED.currency").
		Set("distance_value = EXCLUDED.distance_value").
		Set("distance_unit = EXCLUDED.distance_unit").
		Set("stop_count = EXCLUDED.stop_count").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.NewPersistenceError(err, "sqlstore: upsert order header", map[string]any{
			"order_id": orderID,
		})
	}

	// Stops are written in slice order; the index is the row key.
	for sequence, stop := range details.Stops {
		record := &stopRecord{
			OrderID:            orderID,
			StopSequence:       sequence,
			Address:            strings.TrimSpace(stop.Address),
			Name:               strings.TrimSpace(stop.Name),
			Phone:              strings.TrimSpace(stop.Phone),
			Lat:                strings.TrimSpace(stop.Coordinates.Lat),
			Lng:                strings.TrimSpace(stop.Coordinates.Lng),
			DeliveryCode:       strings.TrimSpace(stop.DeliveryCode.Value),
			DeliveryCodeStatus: strings.TrimSpace(stop.DeliveryCode.Status),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if stop.POD != nil {
			record.PODStatus = strings.TrimSpace(stop.POD.Status)
			record.PODImage = strings.TrimSpace(stop.POD.Image)
			record.PODDeliveredAt = strings.TrimSpace(stop.POD.DeliveredAt)
		}
		_, err := s.db.NewInsert().
			Model(record).
			On("CONFLICT (order_id, stop_sequence) DO UPDATE").
			Set("address = EXCLUDED.address").
			Set("name = EXCLUDED.name").
			Set("phone = EXCLUDED.phone").
			Set("lat = EXCLUDED.lat").
			Set("lng = EXCLUDED.lng").
			Set("pod_status = EXCLUDED.pod_status").
			Set("pod_image = EXCLUDED.pod_image").
			Set("pod_delivered_at = EXCLUDED.pod_delivered_at").
			Set("delivery_code = EXCLUDED.delivery_code").
			Set("delivery_code_status = EXCLUDED.delivery_code_status").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return core.NewPersistenceError(err, "sqlstore: upsert order stop", map[string]any{
				"order_id":      orderID,
				"stop_sequence": sequence,
			})
		}
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (core.OrderDetails, error) {
	if s == nil || s.db == nil {
		return core.OrderDetails{}, core.NewPersistenceError(nil, "sqlstore: order store is not configured", nil)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.OrderDetails{}, core.NewBadInputError("sqlstore: order id is required", nil)
	}

	header := &orderRecord{}
	err := s.db.NewSelect().
		Model(header).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.OrderDetails{}, core.NewOrderNotFoundError(orderID)
		}
		return core.OrderDetails{}, core.NewPersistenceError(err, "sqlstore: select order header", map[string]any{
			"order_id": orderID,
		})
	}

	var stops []stopRecord
	err = s.db.NewSelect().
		Model(&stops).
		Where("?TableAlias.order_id = ?", orderID).
		Order("stop_sequence ASC").
		Scan(ctx)
	if err != nil {
		return core.OrderDetails{}, core.NewPersistenceError(err, "sqlstore: select order stops", map[string]any{
			"order_id": orderID,
		})
	}

	return toDomain(header, stops), nil
}

func toDomain(header *orderRecord, stops []stopRecord) core.OrderDetails {
	details := core.OrderDetails{
		OrderID:     header.OrderID,
		QuotationID: header.QuotationID,
		Status:      header.Status,
		DriverID:    header.DriverID,
		ShareLink:   header.ShareLink,
		PriceBreakdown: core.PriceBreakdown{
			Total:    header.PriceTotal,
			Currency: header.Currency,
		},
		Distance: core.Distance{
			Value: header.DistanceVal,
			Unit:  header.DistanceUnit,
		},
		Metadata: header.Metadata,
	}
	for _, stop := range stops {
		domainStop := core.Stop{
			Coordinates: core.Coordinates{Lat: stop.Lat, Lng: stop.Lng},
			Address:     stop.Address,
			Name:        stop.Name,
			Phone:       stop.Phone,
			DeliveryCode: core.DeliveryCode{
				Value:  stop.DeliveryCode,
				Status: stop.DeliveryCodeStatus,
			},
		}
		if stop.PODStatus != "" || stop.PODImage != "" || stop.PODDeliveredAt != "" {
			domainStop.POD = &core.ProofOfDelivery{
				Status:      stop.PODStatus,
				Image:       stop.PODImage,
				DeliveredAt: stop.PODDeliveredAt,
			}
		}
		details.Stops = append(details.Stops, domainStop)
	}
	return details
}

func (s *OrderStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.OrderStore = (*OrderStore)(nil)
