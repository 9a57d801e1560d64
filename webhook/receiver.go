// Package webhook hosts the inbound HTTP surface of the relay: a single
// fixed-path endpoint that authenticates provider callbacks and hands
// terminal order events to a dispatcher. The dispatcher decides the
// topology, queue or inline, per deployment; the receiver never does both.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/signature"
	glog "github.com/goliatone/go-logger/glog"
)

const maxRequestBodyBytes int64 = 1 << 20 // 1 MiB

// Dispatcher routes an authenticated terminal-order envelope onward.
// The returned message becomes the 200 response body; an error becomes
// the error response with a status resolved from the error's tags.
type Dispatcher interface {
	Dispatch(ctx context.Context, envelope core.Envelope) (string, error)
}

// Receiver is the webhook http.Handler.
type Receiver struct {
	validator  *signature.Validator
	dispatcher Dispatcher
	notifier   core.Notifier
	ledger     core.EventLedger
	logger     core.Logger
}

type Option func(*Receiver)

// WithNotifier wires the best-effort alert channel used when an envelope
// fails authentication.
func WithNotifier(notifier core.Notifier) Option {
	return func(r *Receiver) {
		r.notifier = notifier
	}
}

// WithEventLedger records every accepted terminal event for audit.
func WithEventLedger(ledger core.EventLedger) Option {
	return func(r *Receiver) {
		r.ledger = ledger
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *Receiver) {
		r.logger = glog.Ensure(logger)
	}
}

func NewReceiver(validator *signature.Validator, dispatcher Dispatcher, options ...Option) (*Receiver, error) {
	if validator == nil {
		return nil, core.NewConfigurationError("webhook: signature validator is required")
	}
	if dispatcher == nil {
		return nil, core.NewConfigurationError("webhook: dispatcher is required")
	}
	receiver := &Receiver{
		validator:  validator,
		dispatcher: dispatcher,
		logger:     glog.Nop(),
	}
	for _, option := range options {
		option(receiver)
	}
	return receiver, nil
}

// ServeHTTP processes one provider callback.
//
// The response contract is load-bearing: 200 tells the provider the
// delivery is settled, anything else invites a redelivery. Unknown events
// and non-terminal statuses are therefore acknowledged, not rejected.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	// The provider probes the endpoint with an empty POST when the
	// webhook is registered. There is nothing to authenticate.
	if len(strings.TrimSpace(string(body))) == 0 {
		writeMessage(w, http.StatusOK, "webhook endpoint active")
		return
	}

	var envelope core.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		r.logger.Warn("webhook body is not valid JSON", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if err := r.validator.Validate(envelope); err != nil {
		r.logger.Warn("webhook failed validation", "error", err, "order_id", envelope.Data.Order.OrderID)
		r.notify(req.Context(), "invalid webhook received for order "+strings.TrimSpace(envelope.Data.Order.OrderID))
		writeError(w, http.StatusBadRequest, "invalid webhook")
		return
	}

	if !strings.EqualFold(strings.TrimSpace(envelope.EventType), core.EventOrderStatusChanged) {
		r.logger.Info("ignoring unhandled event type", "event_type", envelope.EventType)
		writeMessage(w, http.StatusOK, "event acknowledged")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(envelope.Data.Order.Status))
	if status != core.OrderStatusCompleted {
		r.logger.Info("acknowledging non-completed status",
			"order_id", envelope.Data.Order.OrderID,
			"status", status,
		)
		writeMessage(w, http.StatusOK, "status acknowledged")
		return
	}

	r.record(req.Context(), envelope)

	message, err := r.dispatcher.Dispatch(req.Context(), envelope)
	if err != nil {
		r.logger.Error("dispatch failed", "error", err, "order_id", envelope.Data.Order.OrderID)
		// The provider has nothing useful to redeliver when it cannot
		// find its own order. Settle the delivery and move on.
		if core.IsOrderNotFound(err) {
			writeMessage(w, http.StatusOK, "order details unavailable, event acknowledged")
			return
		}
		writeError(w, core.HTTPStatus(err), dispatchErrorMessage(err))
		return
	}
	writeMessage(w, http.StatusOK, message)
}

func (r *Receiver) notify(ctx context.Context, message string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Send(ctx, message)
}

func (r *Receiver) record(ctx context.Context, envelope core.Envelope) {
	if r == nil || r.ledger == nil {
		return
	}
	if _, err := r.ledger.Record(ctx, envelope); err != nil {
		r.logger.Warn("event ledger write failed", "error", err, "order_id", envelope.Data.Order.OrderID)
	}
}

func dispatchErrorMessage(err error) string {
	if core.IsUpstreamTimeout(err) {
		return "timeout while fetching order details"
	}
	return "failed to process order"
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
