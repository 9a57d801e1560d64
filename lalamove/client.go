package lalamove

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/signature"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultFetchTimeout = 15 * time.Second
const maxResponseBodyBytes int64 = 10 << 20 // 10 MiB

// Client talks to the provider's versioned REST API with signed requests.
type Client struct {
	baseURL      string
	signer       *signature.Signer
	client       core.HTTPDoer
	fetchTimeout time.Duration
	logger       core.Logger
}

type Option func(*Client)

func WithHTTPClient(doer core.HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = glog.Ensure(logger)
	}
}

// NewClient builds a provider client. An empty baseURL selects the
// sandbox; production must be requested explicitly through configuration.
func NewClient(baseURL string, signer *signature.Signer, options ...Option) (*Client, error) {
	if signer == nil {
		return nil, core.NewConfigurationError("lalamove: request signer is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = BaseURLSandbox
	}
	client := &Client{
		baseURL:      baseURL,
		signer:       signer,
		client:       &http.Client{Timeout: defaultFetchTimeout},
		fetchTimeout: defaultFetchTimeout,
		logger:       glog.Nop(),
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// BaseURLForEnvironment resolves the REST base URL from the runtime
// environment flag.
func BaseURLForEnvironment(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), core.EnvironmentProduction) {
		return BaseURLProduction
	}
	return BaseURLSandbox
}

type orderDetailsResponse struct {
	Data core.OrderDetails `json:"data"`
}

type webhookPatchResponse struct {
	Data   json.RawMessage   `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// FetchOrderDetails issues a signed GET for the order snapshot, bounded
// by the fetch timeout. Failures come back tagged: not-found, upstream
// timeout, or upstream error. Non-2xx bodies are never partially trusted.
func (c *Client) FetchOrderDetails(ctx context.Context, orderID string, market string) (core.OrderDetails, error) {
	if c == nil || c.client == nil {
		return core.OrderDetails{}, core.NewConfigurationError("lalamove: client is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.OrderDetails{}, core.NewBadInputError("lalamove: order id is required", nil)
	}
	path := PathFor(PathOrderDetails, map[string]string{"orderId": orderID})

	status, body, err := c.do(ctx, http.MethodGet, path, "", market)
	if err != nil {
		return core.OrderDetails{}, c.mapTransportError(err, orderID)
	}
	switch {
	case status == http.StatusNotFound:
		return core.OrderDetails{}, core.NewOrderNotFoundError(orderID)
	case status < 200 || status > 299:
		return core.OrderDetails{}, core.NewUpstreamError(
			nil,
			fmt.Sprintf("lalamove: order details request failed with status %d", status),
			map[string]any{"order_id": orderID, "status_code": status},
		)
	}

	var decoded orderDetailsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.OrderDetails{}, core.NewUpstreamError(
			err,
			"lalamove: decode order details response",
			map[string]any{"order_id": orderID},
		)
	}
	if strings.TrimSpace(decoded.Data.OrderID) == "" {
		decoded.Data.OrderID = orderID
	}
	return decoded.Data, nil
}

// ActivateWebhook (re)registers the relay's callback URL with the
// provider via a signed PATCH. The provider reports failures through an
// errors array in a 2xx response body, so both paths are checked.
func (c *Client) ActivateWebhook(ctx context.Context, callbackURL string) error {
	if c == nil || c.client == nil {
		return core.NewConfigurationError("lalamove: client is not configured")
	}
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return core.NewBadInputError("lalamove: callback url is required", nil)
	}

	payload, err := json.Marshal(map[string]any{
		"data": map[string]any{"url": callbackURL},
	})
	if err != nil {
		return core.NewBadInputError("lalamove: encode webhook activation payload", nil)
	}

	status, body, err := c.do(ctx, http.MethodPatch, PathWebhook, string(payload), "")
	if err != nil {
		return c.mapTransportError(err, "")
	}
	if status < 200 || status > 299 {
		return core.NewUpstreamError(
			nil,
			fmt.Sprintf("lalamove: webhook activation failed with status %d", status),
			map[string]any{"status_code": status},
		)
	}

	var decoded webhookPatchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.NewUpstreamError(err, "lalamove: decode webhook activation response", nil)
	}
	if len(decoded.Errors) > 0 {
		return core.NewUpstreamError(
			nil,
			"lalamove: provider rejected webhook activation",
			map[string]any{"errors": len(decoded.Errors)},
		)
	}
	c.logger.Info("webhook activation accepted", "callback_url", callbackURL)
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, body string, market string) (int, []byte, error) {
	headers, err := c.signer.Headers(method, path, body)
	if err != nil {
		return 0, nil, err
	}
	if market = strings.TrimSpace(market); market != "" {
		headers.Set("Market", market)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(requestCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, core.NewBadInputError("lalamove: create request", map[string]any{
			"method": method,
			"path":   path,
		})
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, payload, nil
}

func (c *Client) timeout() time.Duration {
	if c != nil && c.fetchTimeout > 0 {
		return c.fetchTimeout
	}
	return defaultFetchTimeout
}

func (c *Client) mapTransportError(err error, orderID string) error {
	metadata := map[string]any{}
	if strings.TrimSpace(orderID) != "" {
		metadata["order_id"] = strings.TrimSpace(orderID)
	}
	if isTimeout(err) {
		return core.NewUpstreamTimeoutError(err, metadata)
	}
	return core.NewUpstreamError(err, "lalamove: provider request failed", metadata)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
