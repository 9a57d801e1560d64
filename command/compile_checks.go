package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessOrderMessage]    = (*ProcessOrderCommand)(nil)
	_ gocmd.Commander[FetchOrderMessage]      = (*FetchOrderCommand)(nil)
	_ gocmd.Commander[ActivateWebhookMessage] = (*ActivateWebhookCommand)(nil)
)
