package lalamove

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/signature"
)

type stubDoer struct {
	status   int
	body     string
	err      error
	lastReq  *http.Request
	lastBody string
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if req.Body != nil {
		payload, _ := io.ReadAll(req.Body)
		s.lastBody = string(payload)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(s.body))),
		Header:     http.Header{},
	}, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newTestClient(t *testing.T, doer core.HTTPDoer) *Client {
	t.Helper()
	signer, err := signature.NewSigner("secret", "api-key", "MY")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	client, err := NewClient(BaseURLSandbox, signer, WithHTTPClient(doer))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_FetchOrderDetails(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{
		"data": {
			"orderId": "3210408918",
			"quotationId": "q_123",
			"status": "COMPLETED",
			"driverId": "drv_9",
			"shareLink": "https://share.example/abc",
			"priceBreakdown": {"total": "18.50", "currency": "MYR"},
			"stops": [
				{"stopId": "s1", "address": "Jalan Satu"},
				{"stopId": "s2", "address": "Jalan Dua", "POD": {"status": "SIGNED"}}
			]
		}
	}`}
	client := newTestClient(t, doer)

	details, err := client.FetchOrderDetails(context.Background(), "3210408918", "MY")
	if err != nil {
		t.Fatalf("fetch order details: %v", err)
	}
	if details.OrderID != "3210408918" {
		t.Fatalf("expected order id to survive decoding, got %q", details.OrderID)
	}
	if details.Status != core.OrderStatusCompleted {
		t.Fatalf("unexpected status %q", details.Status)
	}
	if len(details.Stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(details.Stops))
	}
	if details.Stops[1].POD == nil || details.Stops[1].POD.Status != "SIGNED" {
		t.Fatalf("expected POD on second stop")
	}

	req := doer.lastReq
	if req == nil {
		t.Fatalf("expected a request to be issued")
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/v3/orders/3210408918" {
		t.Fatalf("unexpected path %q", req.URL.Path)
	}
	if auth := req.Header.Get("Authorization"); auth == "" {
		t.Fatalf("expected signed request")
	}
	if market := req.Header.Get("Market"); market != "MY" {
		t.Fatalf("expected market header, got %q", market)
	}
	if _, ok := req.Context().Deadline(); !ok {
		t.Fatalf("expected a deadline on the request context")
	}
}

func TestClient_FetchOrderDetailsNotFound(t *testing.T) {
	doer := &stubDoer{status: http.StatusNotFound, body: `{"errors":[{"id":"404"}]}`}
	client := newTestClient(t, doer)

	_, err := client.FetchOrderDetails(context.Background(), "missing", "MY")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	if !core.IsOrderNotFound(err) {
		t.Fatalf("expected order-not-found tag, got %v", err)
	}
}

func TestClient_FetchOrderDetailsTimeout(t *testing.T) {
	doer := &stubDoer{err: timeoutError{}}
	client := newTestClient(t, doer)

	_, err := client.FetchOrderDetails(context.Background(), "3210408918", "MY")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !core.IsUpstreamTimeout(err) {
		t.Fatalf("expected upstream-timeout tag, got %v", err)
	}
}

func TestClient_FetchOrderDetailsServerFailure(t *testing.T) {
	doer := &stubDoer{status: http.StatusBadGateway, body: "upstream broke"}
	client := newTestClient(t, doer)

	_, err := client.FetchOrderDetails(context.Background(), "3210408918", "MY")
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	if core.IsUpstreamTimeout(err) || core.IsOrderNotFound(err) {
		t.Fatalf("expected plain upstream tag, got %v", err)
	}
}

func TestClient_FetchOrderDetailsRespectsConfiguredTimeout(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"data":{"orderId":"x"}}`}
	signer, err := signature.NewSigner("secret", "api-key", "MY")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	client, err := NewClient("", signer, WithHTTPClient(doer), WithFetchTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	before := time.Now()
	if _, err := client.FetchOrderDetails(context.Background(), "x", ""); err != nil {
		t.Fatalf("fetch order details: %v", err)
	}
	deadline, ok := doer.lastReq.Context().Deadline()
	if !ok {
		t.Fatalf("expected a deadline on the request context")
	}
	if remaining := deadline.Sub(before); remaining > 4*time.Second {
		t.Fatalf("deadline %v exceeds configured timeout", remaining)
	}
}

func TestClient_ActivateWebhook(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"data":{"url":"https://relay.example/delivery-webhook"}}`}
	client := newTestClient(t, doer)

	if err := client.ActivateWebhook(context.Background(), "https://relay.example/delivery-webhook"); err != nil {
		t.Fatalf("activate webhook: %v", err)
	}
	if doer.lastReq.Method != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", doer.lastReq.Method)
	}
	if doer.lastReq.URL.Path != PathWebhook {
		t.Fatalf("unexpected path %q", doer.lastReq.URL.Path)
	}
	if doer.lastBody != `{"data":{"url":"https://relay.example/delivery-webhook"}}` {
		t.Fatalf("unexpected payload %q", doer.lastBody)
	}
}

func TestClient_ActivateWebhookProviderErrorsArray(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"errors":[{"id":"ERR_INVALID_URL"}]}`}
	client := newTestClient(t, doer)

	if err := client.ActivateWebhook(context.Background(), "https://relay.example/hook"); err == nil {
		t.Fatalf("expected rejection when provider reports errors")
	}
}

func TestBaseURLForEnvironment(t *testing.T) {
	if got := BaseURLForEnvironment("production"); got != BaseURLProduction {
		t.Fatalf("expected production base url, got %q", got)
	}
	if got := BaseURLForEnvironment("sandbox"); got != BaseURLSandbox {
		t.Fatalf("expected sandbox base url, got %q", got)
	}
	if got := BaseURLForEnvironment(""); got != BaseURLSandbox {
		t.Fatalf("expected sandbox default, got %q", got)
	}
}
