package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput         = "RELAY_BAD_INPUT"
	RelayErrorInvalidWebhook   = "RELAY_INVALID_WEBHOOK"
	RelayErrorConfiguration    = "RELAY_CONFIGURATION"
	RelayErrorOrderNotFound    = "RELAY_ORDER_NOT_FOUND"
	RelayErrorUpstreamTimeout  = "RELAY_UPSTREAM_TIMEOUT"
	RelayErrorUpstream         = "RELAY_UPSTREAM_FAILED"
	RelayErrorPersistence      = "RELAY_PERSISTENCE_FAILED"
	RelayErrorQueue            = "RELAY_QUEUE_FAILED"
	RelayErrorInternal         = "RELAY_INTERNAL_ERROR"
)

func relayError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func relayWrapError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return relayError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewBadInputError marks unparseable or structurally invalid request input.
func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	return relayError(message, goerrors.CategoryBadInput, http.StatusBadRequest, RelayErrorBadInput, metadata)
}

// NewValidationError marks an authenticated-input failure: signature,
// api key, or timestamp outside the replay window. Never retried.
func NewValidationError(message string, metadata map[string]any) *goerrors.Error {
	return relayError(message, goerrors.CategoryValidation, http.StatusBadRequest, RelayErrorInvalidWebhook, metadata)
}

// NewConfigurationError marks missing secret/key material. Fatal at
// startup, never a per-request condition.
func NewConfigurationError(message string) *goerrors.Error {
	return relayError(message, goerrors.CategoryInternal, http.StatusInternalServerError, RelayErrorConfiguration, nil)
}

// NewOrderNotFoundError tags a provider 404 for a fetched order.
func NewOrderNotFoundError(orderID string) *goerrors.Error {
	return relayError(
		"provider returned no order details",
		goerrors.CategoryNotFound,
		http.StatusNotFound,
		RelayErrorOrderNotFound,
		map[string]any{"order_id": strings.TrimSpace(orderID)},
	)
}

// NewUpstreamTimeoutError tags a provider call that exceeded its bound.
// Kept distinct from generic upstream failures so callers can surface a
// timeout-specific message.
func NewUpstreamTimeoutError(source error, metadata map[string]any) *goerrors.Error {
	return relayWrapError(
		source,
		goerrors.CategoryExternal,
		"provider request timed out",
		http.StatusInternalServerError,
		RelayErrorUpstreamTimeout,
		metadata,
	)
}

// NewUpstreamError tags a non-2xx response or network failure from the
// provider. The response body is not partially trusted.
func NewUpstreamError(source error, message string, metadata map[string]any) *goerrors.Error {
	return relayWrapError(
		source,
		goerrors.CategoryExternal,
		message,
		http.StatusInternalServerError,
		RelayErrorUpstream,
		metadata,
	)
}

// NewPersistenceError is raised to the caller, never retried locally.
func NewPersistenceError(source error, message string, metadata map[string]any) *goerrors.Error {
	return relayWrapError(
		source,
		goerrors.CategoryInternal,
		message,
		http.StatusInternalServerError,
		RelayErrorPersistence,
		metadata,
	)
}

// NewQueueError tags a failed enqueue or dequeue operation.
func NewQueueError(source error, message string, metadata map[string]any) *goerrors.Error {
	return relayWrapError(
		source,
		goerrors.CategoryOperation,
		message,
		http.StatusInternalServerError,
		RelayErrorQueue,
		metadata,
	)
}

// IsUpstreamTimeout reports whether err carries the upstream-timeout tag.
func IsUpstreamTimeout(err error) bool {
	return hasTextCode(err, RelayErrorUpstreamTimeout)
}

// IsOrderNotFound reports whether err carries the order-not-found tag.
func IsOrderNotFound(err error) bool {
	return hasTextCode(err, RelayErrorOrderNotFound)
}

// IsValidationFailure reports whether err carries the invalid-webhook tag.
func IsValidationFailure(err error) bool {
	return hasTextCode(err, RelayErrorInvalidWebhook)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

// HTTPStatus resolves the client-facing status code for err. The status
// communicates retry-worthiness to the calling platform, not to a user.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}
