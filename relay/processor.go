// Package relay implements the order processing pipeline that runs after
// a completed-order webhook is accepted: fetch the order snapshot from
// the provider, persist it when storage is configured, and announce the
// outcome on the chat channel. The same pipeline backs both topologies;
// only the caller differs.
package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-delivery-relay/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Processor executes one processing message end to end. It is safe to
// call concurrently and tolerates redelivered duplicates: every write is
// an idempotent upsert.
type Processor struct {
	fetcher  core.OrderFetcher
	store    core.OrderStore
	notifier core.Notifier
	logger   core.Logger
}

type Option func(*Processor)

// WithOrderStore enables persistence. Without it the processor fetches
// and notifies only.
func WithOrderStore(store core.OrderStore) Option {
	return func(p *Processor) {
		p.store = store
	}
}

func WithNotifier(notifier core.Notifier) Option {
	return func(p *Processor) {
		p.notifier = notifier
	}
}

func WithLogger(logger core.Logger) Option {
	return func(p *Processor) {
		p.logger = glog.Ensure(logger)
	}
}

func NewProcessor(fetcher core.OrderFetcher, options ...Option) (*Processor, error) {
	if fetcher == nil {
		return nil, core.NewConfigurationError("relay: order fetcher is required")
	}
	processor := &Processor{
		fetcher: fetcher,
		logger:  glog.Nop(),
	}
	for _, option := range options {
		option(processor)
	}
	return processor, nil
}

// Process fetches, persists, and announces one completed order. A
// returned error tells the hosting queue to retry or dead-letter; the
// processor itself never retries.
func (p *Processor) Process(ctx context.Context, msg core.ProcessingMessage) error {
	if p == nil || p.fetcher == nil {
		return core.NewConfigurationError("relay: processor is not configured")
	}
	orderID := strings.TrimSpace(msg.OrderID)
	if orderID == "" {
		orderID = strings.TrimSpace(msg.WebhookData.Data.Order.OrderID)
	}
	if orderID == "" {
		return core.NewBadInputError("relay: processing message has no order id", nil)
	}

	status := strings.ToUpper(strings.TrimSpace(msg.Status))
	if status != "" && status != core.OrderStatusCompleted {
		p.logger.Info("skipping non-completed message", "order_id", orderID, "status", status)
		return nil
	}

	market := strings.TrimSpace(msg.WebhookData.Data.Order.Market)

	details, err := p.fetcher.FetchOrderDetails(ctx, orderID, market)
	if err != nil {
		p.notify(ctx, failureMessage(orderID, err))
		p.logger.Error("order details fetch failed", "error", err, "order_id", orderID)
		return err
	}

	if p.store != nil {
		if err := p.store.UpsertOrder(ctx, details); err != nil {
			p.notify(ctx, fmt.Sprintf("Order %s: failed to persist order details", orderID))
			p.logger.Error("order persistence failed", "error", err, "order_id", orderID)
			return err
		}
	}

	p.notify(ctx, successMessage(details))
	p.logger.Info("order processed",
		"order_id", details.OrderID,
		"stops", len(details.Stops),
		"driver_id", details.DriverID,
	)
	return nil
}

func (p *Processor) notify(ctx context.Context, message string) {
	if p == nil || p.notifier == nil {
		return
	}
	p.notifier.Send(ctx, message)
}

func successMessage(details core.OrderDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s completed", details.OrderID)
	if total := strings.TrimSpace(details.PriceBreakdown.Total); total != "" {
		fmt.Fprintf(&b, ", total %s %s", total, strings.TrimSpace(details.PriceBreakdown.Currency))
	}
	fmt.Fprintf(&b, ", %d stop(s)", len(details.Stops))
	if driver := strings.TrimSpace(details.DriverID); driver != "" {
		fmt.Fprintf(&b, ", driver %s", driver)
	}
	return b.String()
}

func failureMessage(orderID string, err error) string {
	switch {
	case core.IsUpstreamTimeout(err):
		return fmt.Sprintf("Order %s: timed out fetching order details", orderID)
	case core.IsOrderNotFound(err):
		return fmt.Sprintf("Order %s: provider returned no order details", orderID)
	default:
		return fmt.Sprintf("Order %s: failed to fetch order details", orderID)
	}
}
