package signature

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
)

const defaultReplayWindow = 5 * time.Minute

// Validator authenticates inbound webhook envelopes. Method and path are
// fixed constants of the configured endpoint, deliberately not derived
// from the request line: a captured signature cannot be replayed against
// another route even if the secret leaks alongside it.
type Validator struct {
	secret       string
	apiKey       string
	method       string
	path         string
	replayWindow time.Duration
	Now          func() time.Time
}

// NewValidator fails when signing material is absent, mirroring NewSigner.
func NewValidator(secret string, apiKey string, method string, path string, replayWindow time.Duration) (*Validator, error) {
	secret = strings.TrimSpace(secret)
	apiKey = strings.TrimSpace(apiKey)
	if secret == "" || apiKey == "" {
		return nil, core.NewConfigurationError("signature: secret and api key are required for validation")
	}
	if replayWindow <= 0 {
		replayWindow = defaultReplayWindow
	}
	return &Validator{
		secret:       secret,
		apiKey:       apiKey,
		method:       strings.ToUpper(strings.TrimSpace(method)),
		path:         strings.TrimSpace(path),
		replayWindow: replayWindow,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Validate checks api key, replay window, and signature, in that order.
// It is pure over its inputs; the caller decides what to log. A drift of
// exactly the replay window is still accepted; one millisecond past it is
// rejected.
func (v *Validator) Validate(envelope core.Envelope) error {
	if v == nil || v.secret == "" || v.apiKey == "" {
		return core.NewConfigurationError("signature: validator is not configured")
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(envelope.APIKey)), []byte(v.apiKey)) != 1 {
		return core.NewValidationError("invalid webhook", map[string]any{
			"reason": "api key mismatch",
		})
	}

	now := v.now().UnixMilli()
	requestTime := envelope.Timestamp * 1000
	drift := now - requestTime
	if drift < 0 {
		drift = -drift
	}
	if drift > v.replayWindow.Milliseconds() {
		return core.NewValidationError("invalid webhook", map[string]any{
			"reason":       "timestamp outside replay window",
			"drift_ms":     drift,
			"tolerance_ms": v.replayWindow.Milliseconds(),
		})
	}

	body, err := envelope.DataJSON()
	if err != nil {
		return core.NewBadInputError("invalid webhook data block", nil)
	}
	canonical := CanonicalString(
		strconv.FormatInt(envelope.Timestamp, 10),
		v.method,
		v.path,
		string(body),
	)
	expected := hexHMACSHA256(v.secret, canonical)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(envelope.Signature))) != 1 {
		return core.NewValidationError("invalid webhook", map[string]any{
			"reason": "signature mismatch",
		})
	}
	return nil
}

func (v *Validator) now() time.Time {
	if v != nil && v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

