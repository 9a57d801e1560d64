// Package notify delivers best-effort operational messages to a Google
// Chat space. Delivery failures are logged and swallowed: a broken chat
// channel must never fail webhook processing.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultSendTimeout = 10 * time.Second
const defaultTimezone = "Asia/Kuala_Lumpur"

// ChatNotifier posts JSON text messages to a chat webhook URL. Each
// message is prefixed with the local time in the configured timezone so
// operators reading the space see wall-clock context.
type ChatNotifier struct {
	webhookURL string
	client     core.HTTPDoer
	timeout    time.Duration
	location   *time.Location
	logger     core.Logger
	Now        func() time.Time
}

type Option func(*ChatNotifier)

func WithHTTPClient(doer core.HTTPDoer) Option {
	return func(n *ChatNotifier) {
		if doer != nil {
			n.client = doer
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *ChatNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(n *ChatNotifier) {
		n.logger = glog.Ensure(logger)
	}
}

// NewChatNotifier builds a notifier. An empty webhookURL yields a working
// notifier that logs and skips every send; an unknown timezone falls back
// to UTC rather than failing construction.
func NewChatNotifier(webhookURL string, timezone string, options ...Option) *ChatNotifier {
	location, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil || strings.TrimSpace(timezone) == "" {
		location, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			location = time.UTC
		}
	}
	notifier := &ChatNotifier{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: defaultSendTimeout},
		timeout:    defaultSendTimeout,
		location:   location,
		logger:     glog.Nop(),
		Now: func() time.Time {
			return time.Now()
		},
	}
	for _, option := range options {
		option(notifier)
	}
	return notifier
}

type chatMessage struct {
	Text string `json:"text"`
}

// Send posts the message, bounded by the send timeout. It always returns
// nil: failures are logged, never propagated, so callers can invoke it
// unconditionally on both success and failure paths.
func (n *ChatNotifier) Send(ctx context.Context, message string) error {
	if n == nil {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	if n.webhookURL == "" {
		n.logger.Warn("chat webhook url not configured, dropping notification", "message", message)
		return nil
	}

	payload, err := json.Marshal(chatMessage{Text: n.format(message)})
	if err != nil {
		n.logger.Error("encode chat notification failed", "error", err)
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("build chat notification request failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("chat notification send failed", "error", err)
		return nil
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		n.logger.Error("chat notification rejected", "status_code", res.StatusCode)
	}
	return nil
}

func (n *ChatNotifier) format(message string) string {
	at := n.Now().In(n.location)
	return at.Format("2006-01-02 15:04:05") + " " + message
}
