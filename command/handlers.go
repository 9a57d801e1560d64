package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-delivery-relay/core"
)

// WebhookActivator registers the relay's callback URL with the provider.
type WebhookActivator interface {
	ActivateWebhook(ctx context.Context, callbackURL string) error
}

type ProcessOrderCommand struct {
	processor core.Processor
}

func NewProcessOrderCommand(processor core.Processor) *ProcessOrderCommand {
	return &ProcessOrderCommand{processor: processor}
}

func (c *ProcessOrderCommand) Execute(ctx context.Context, msg ProcessOrderMessage) error {
	if c == nil || c.processor == nil {
		return core.NewConfigurationError("command: order processor is required")
	}
	return c.processor.Process(ctx, msg.Message)
}

type FetchOrderCommand struct {
	fetcher core.OrderFetcher
}

func NewFetchOrderCommand(fetcher core.OrderFetcher) *FetchOrderCommand {
	return &FetchOrderCommand{fetcher: fetcher}
}

func (c *FetchOrderCommand) Execute(ctx context.Context, msg FetchOrderMessage) error {
	if c == nil || c.fetcher == nil {
		return core.NewConfigurationError("command: order fetcher is required")
	}
	out, err := c.fetcher.FetchOrderDetails(ctx, msg.OrderID, msg.Market)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ActivateWebhookCommand struct {
	activator WebhookActivator
}

func NewActivateWebhookCommand(activator WebhookActivator) *ActivateWebhookCommand {
	return &ActivateWebhookCommand{activator: activator}
}

func (c *ActivateWebhookCommand) Execute(ctx context.Context, msg ActivateWebhookMessage) error {
	if c == nil || c.activator == nil {
		return core.NewConfigurationError("command: webhook activator is required")
	}
	return c.activator.ActivateWebhook(ctx, msg.CallbackURL)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
