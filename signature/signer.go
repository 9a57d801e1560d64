package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
)

// CanonicalString builds the exact HMAC input for a signed request. Any
// deviation from this concatenation invalidates all signatures.
func CanonicalString(timestamp string, method string, path string, body string) string {
	return fmt.Sprintf("%s\r\n%s\r\n%s\r\n\r\n%s", timestamp, method, path, body)
}

func hexHMACSHA256(secret string, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Signer produces the headers for authenticated outbound provider calls.
type Signer struct {
	secret string
	apiKey string
	market string
	Now    func() time.Time
}

// NewSigner fails when signing material is absent; that is a fatal
// configuration error, not a per-request condition.
func NewSigner(secret string, apiKey string, market string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	apiKey = strings.TrimSpace(apiKey)
	if secret == "" || apiKey == "" {
		return nil, core.NewConfigurationError("signature: secret and api key are required for signing")
	}
	market = strings.TrimSpace(market)
	if market == "" {
		market = "MY"
	}
	return &Signer{
		secret: secret,
		apiKey: apiKey,
		market: market,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Headers signs method/path/body with a wall-clock millisecond timestamp
// and returns the provider's required request headers.
func (s *Signer) Headers(method string, path string, body string) (http.Header, error) {
	if s == nil || s.secret == "" || s.apiKey == "" {
		return nil, core.NewConfigurationError("signature: signer is not configured")
	}
	timestamp := fmt.Sprintf("%d", s.now().UnixMilli())
	digest := hexHMACSHA256(s.secret, CanonicalString(timestamp, method, path, body))

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", fmt.Sprintf("hmac %s:%s:%s", s.apiKey, timestamp, digest))
	headers.Set("Market", s.market)
	return headers, nil
}

func (s *Signer) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
