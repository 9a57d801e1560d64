package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/signature"
)

const (
	testSecret = "test-secret"
	testAPIKey = "test-api-key"
	testPath   = "/delivery-webhook"
)

type stubDispatcher struct {
	message   string
	err       error
	calls     int
	lastOrder string
}

func (s *stubDispatcher) Dispatch(_ context.Context, envelope core.Envelope) (string, error) {
	s.calls++
	s.lastOrder = envelope.Data.Order.OrderID
	if s.err != nil {
		return "", s.err
	}
	return s.message, nil
}

type stubNotifier struct {
	messages []string
}

func (s *stubNotifier) Send(_ context.Context, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

func signEnvelope(t *testing.T, envelope *core.Envelope) {
	t.Helper()
	body, err := envelope.DataJSON()
	if err != nil {
		t.Fatalf("marshal data block: %v", err)
	}
	canonical := signature.CanonicalString(
		strconv.FormatInt(envelope.Timestamp, 10),
		http.MethodPost,
		testPath,
		string(body),
	)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(canonical))
	envelope.Signature = hex.EncodeToString(mac.Sum(nil))
}

func testEnvelope(t *testing.T, at time.Time, status string) core.Envelope {
	t.Helper()
	envelope := core.Envelope{
		APIKey:    testAPIKey,
		Timestamp: at.Unix(),
		EventType: core.EventOrderStatusChanged,
		Data: core.EnvelopeData{
			UpdatedAt: at.Format(time.RFC3339),
			Order: core.OrderEvent{
				OrderID: "3210408918",
				Status:  status,
				Market:  "MY",
			},
		},
	}
	signEnvelope(t, &envelope)
	return envelope
}

func newTestReceiver(t *testing.T, now time.Time, dispatcher Dispatcher, options ...Option) *Receiver {
	t.Helper()
	validator, err := signature.NewValidator(testSecret, testAPIKey, http.MethodPost, testPath, 5*time.Minute)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	validator.Now = func() time.Time { return now }
	receiver, err := NewReceiver(validator, dispatcher, options...)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	return receiver
}

func post(t *testing.T, receiver *Receiver, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, testPath, bytes.NewReader(body))
	res := httptest.NewRecorder()
	receiver.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response body %q: %v", res.Body.String(), err)
	}
	return payload
}

func TestReceiver_EmptyBodyIsNeutralAck(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	receiver := newTestReceiver(t, now, dispatcher)

	res := post(t, receiver, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", res.Code)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected no dispatch on activation probe")
	}
	if _, ok := decodeBody(t, res)["message"]; !ok {
		t.Fatalf("expected message body, got %s", res.Body.String())
	}
}

func TestReceiver_MalformedJSONIsRejectedBeforeValidation(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	notifier := &stubNotifier{}
	receiver := newTestReceiver(t, now, dispatcher, WithNotifier(notifier))

	res := post(t, receiver, []byte(`{"apiKey": "trunc`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", res.Code)
	}
	if got := decodeBody(t, res)["error"]; got != "invalid JSON in request body" {
		t.Fatalf("unexpected error body %q", got)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("malformed JSON must not alert, got %v", notifier.messages)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestReceiver_InvalidSignatureAlertsAndRejects(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	notifier := &stubNotifier{}
	receiver := newTestReceiver(t, now, dispatcher, WithNotifier(notifier))

	envelope := testEnvelope(t, now, core.OrderStatusCompleted)
	envelope.Signature = strings.Repeat("0", 64)
	body, _ := json.Marshal(envelope)

	res := post(t, receiver, body)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", res.Code)
	}
	if got := decodeBody(t, res)["error"]; got != "invalid webhook" {
		t.Fatalf("unexpected error body %q", got)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one alert, got %v", notifier.messages)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected no dispatch on invalid signature")
	}
}

func TestReceiver_StaleTimestampIsRejected(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	receiver := newTestReceiver(t, now, &stubDispatcher{})

	envelope := testEnvelope(t, now.Add(-6*time.Minute), core.OrderStatusCompleted)
	body, _ := json.Marshal(envelope)

	res := post(t, receiver, body)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for stale envelope, got %d", res.Code)
	}
}

func TestReceiver_UnknownEventTypeIsAcked(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	receiver := newTestReceiver(t, now, dispatcher)

	envelope := testEnvelope(t, now, core.OrderStatusCompleted)
	envelope.EventType = "DRIVER_ASSIGNED"
	signEnvelope(t, &envelope)
	body, _ := json.Marshal(envelope)

	res := post(t, receiver, body)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for unhandled event type, got %d", res.Code)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected no dispatch for unhandled event type")
	}
}

func TestReceiver_NonTerminalStatusIsAcked(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{}
	receiver := newTestReceiver(t, now, dispatcher)

	for _, status := range []string{"ASSIGNING_DRIVER", "ON_GOING", "PICKED_UP", core.OrderStatusCancelled} {
		body, _ := json.Marshal(testEnvelope(t, now, status))
		res := post(t, receiver, body)
		if res.Code != http.StatusOK {
			t.Fatalf("status %s: expected 200, got %d", status, res.Code)
		}
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected no dispatch for non-completed statuses")
	}
}

func TestReceiver_CompletedOrderIsDispatched(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{message: "queued for processing"}
	receiver := newTestReceiver(t, now, dispatcher)

	body, _ := json.Marshal(testEnvelope(t, now, core.OrderStatusCompleted))
	res := post(t, receiver, body)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if dispatcher.calls != 1 || dispatcher.lastOrder != "3210408918" {
		t.Fatalf("expected a single dispatch for the completed order")
	}
	if got := decodeBody(t, res)["message"]; got != "queued for processing" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestReceiver_DispatchTimeoutYieldsTimeoutMessage(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{err: core.NewUpstreamTimeoutError(errors.New("deadline exceeded"), nil)}
	receiver := newTestReceiver(t, now, dispatcher)

	body, _ := json.Marshal(testEnvelope(t, now, core.OrderStatusCompleted))
	res := post(t, receiver, body)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := decodeBody(t, res)["error"]; got != "timeout while fetching order details" {
		t.Fatalf("expected timeout-specific message, got %q", got)
	}
}

func TestReceiver_OrderNotFoundSettlesDelivery(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{err: core.NewOrderNotFoundError("3210408918")}
	receiver := newTestReceiver(t, now, dispatcher)

	body, _ := json.Marshal(testEnvelope(t, now, core.OrderStatusCompleted))
	res := post(t, receiver, body)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for missing order details, got %d", res.Code)
	}
	if got := decodeBody(t, res)["message"]; got != "order details unavailable, event acknowledged" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestReceiver_DispatchFailureYieldsGenericMessage(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	dispatcher := &stubDispatcher{err: core.NewUpstreamError(errors.New("boom"), "provider request failed", nil)}
	receiver := newTestReceiver(t, now, dispatcher)

	body, _ := json.Marshal(testEnvelope(t, now, core.OrderStatusCompleted))
	res := post(t, receiver, body)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := decodeBody(t, res)["error"]; got != "failed to process order" {
		t.Fatalf("unexpected error message %q", got)
	}
}

func TestReceiver_RejectsNonPOST(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	receiver := newTestReceiver(t, now, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, testPath, nil)
	res := httptest.NewRecorder()
	receiver.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
