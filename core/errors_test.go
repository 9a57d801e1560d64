package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorTags_AreDistinguishable(t *testing.T) {
	timeout := NewUpstreamTimeoutError(context.DeadlineExceeded, map[string]any{"order_id": "ord_1"})
	if !IsUpstreamTimeout(timeout) {
		t.Fatalf("expected upstream timeout tag")
	}
	if IsOrderNotFound(timeout) {
		t.Fatalf("timeout must not carry the not-found tag")
	}

	notFound := NewOrderNotFoundError("ord_1")
	if !IsOrderNotFound(notFound) {
		t.Fatalf("expected order-not-found tag")
	}
	if IsUpstreamTimeout(notFound) {
		t.Fatalf("not-found must not carry the timeout tag")
	}

	generic := NewUpstreamError(errors.New("boom"), "provider rejected the request", nil)
	if IsUpstreamTimeout(generic) || IsOrderNotFound(generic) {
		t.Fatalf("generic upstream error must stay untagged")
	}
}

func TestErrorTags_SurviveWrapping(t *testing.T) {
	inner := NewUpstreamTimeoutError(context.DeadlineExceeded, nil)
	wrapped := fmt.Errorf("process order: %w", inner)
	if !IsUpstreamTimeout(wrapped) {
		t.Fatalf("expected timeout tag to survive fmt wrapping")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"bad input", NewBadInputError("invalid JSON in request body", nil), http.StatusBadRequest},
		{"validation", NewValidationError("invalid webhook", nil), http.StatusBadRequest},
		{"timeout", NewUpstreamTimeoutError(context.DeadlineExceeded, nil), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%s: HTTPStatus = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestValidationFailureTag(t *testing.T) {
	err := NewValidationError("invalid webhook", map[string]any{"reason": "signature mismatch"})
	if !IsValidationFailure(err) {
		t.Fatalf("expected validation failure tag")
	}
	if IsValidationFailure(NewBadInputError("invalid JSON in request body", nil)) {
		t.Fatalf("bad input must not be tagged as validation failure")
	}
}
