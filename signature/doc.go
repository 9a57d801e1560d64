// Package signature implements the provider's HMAC-SHA256 request signing
// scheme in both directions: validating inbound webhook envelopes and
// producing Authorization headers for outbound API calls.
//
// Both directions share one canonical signing string,
//
//	"{timestamp}\r\n{method}\r\n{path}\r\n\r\n{body}"
//
// but the timestamp unit differs: inbound envelopes carry unix seconds,
// outbound headers carry unix milliseconds. The asymmetry is part of the
// provider wire contract and must not be normalized away.
package signature
