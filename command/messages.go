// Package command exposes the relay's operations as go-command messages
// so hosting applications can drive them through a shared dispatcher.
package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-delivery-relay/core"
)

const (
	TypeProcessOrder    = "relay.command.order.process"
	TypeFetchOrder      = "relay.command.order.fetch"
	TypeActivateWebhook = "relay.command.webhook.activate"
)

type ProcessOrderMessage struct {
	Message core.ProcessingMessage
}

func (ProcessOrderMessage) Type() string { return TypeProcessOrder }

func (m ProcessOrderMessage) Validate() error {
	if strings.TrimSpace(m.Message.OrderID) == "" &&
		strings.TrimSpace(m.Message.WebhookData.Data.Order.OrderID) == "" {
		return fmt.Errorf("command: order id is required")
	}
	return nil
}

type FetchOrderMessage struct {
	OrderID string
	Market  string
}

func (FetchOrderMessage) Type() string { return TypeFetchOrder }

func (m FetchOrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("command: order id is required")
	}
	return nil
}

type ActivateWebhookMessage struct {
	CallbackURL string
}

func (ActivateWebhookMessage) Type() string { return TypeActivateWebhook }

func (m ActivateWebhookMessage) Validate() error {
	if strings.TrimSpace(m.CallbackURL) == "" {
		return fmt.Errorf("command: callback url is required")
	}
	return nil
}
