package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubDoer struct {
	status   int
	err      error
	calls    int
	lastReq  *http.Request
	lastBody string
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.calls++
	s.lastReq = req
	if req.Body != nil {
		payload, _ := io.ReadAll(req.Body)
		s.lastBody = string(payload)
	}
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func TestChatNotifier_SendPrefixesLocalTime(t *testing.T) {
	doer := &stubDoer{}
	notifier := NewChatNotifier("https://chat.example/webhook", "Asia/Kuala_Lumpur", WithHTTPClient(doer))
	notifier.Now = func() time.Time {
		return time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC)
	}

	if err := notifier.Send(context.Background(), "order 3210408918 processed"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if doer.calls != 1 {
		t.Fatalf("expected one send, got %d", doer.calls)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(doer.lastBody), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	// 02:00 UTC is 10:00 in Kuala Lumpur (UTC+8).
	if !strings.HasPrefix(decoded.Text, "2026-08-29 10:00:00 ") {
		t.Fatalf("expected local-time prefix, got %q", decoded.Text)
	}
	if !strings.HasSuffix(decoded.Text, "order 3210408918 processed") {
		t.Fatalf("expected original message suffix, got %q", decoded.Text)
	}
	if got := doer.lastReq.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
}

func TestChatNotifier_SendSwallowsTransportFailure(t *testing.T) {
	doer := &stubDoer{err: errors.New("connection refused")}
	notifier := NewChatNotifier("https://chat.example/webhook", "UTC", WithHTTPClient(doer))

	if err := notifier.Send(context.Background(), "failure should not propagate"); err != nil {
		t.Fatalf("expected nil from best-effort send, got %v", err)
	}
}

func TestChatNotifier_SendSwallowsRejection(t *testing.T) {
	doer := &stubDoer{status: http.StatusForbidden}
	notifier := NewChatNotifier("https://chat.example/webhook", "UTC", WithHTTPClient(doer))

	if err := notifier.Send(context.Background(), "rejected by chat"); err != nil {
		t.Fatalf("expected nil from best-effort send, got %v", err)
	}
}

func TestChatNotifier_UnconfiguredURLSkipsSend(t *testing.T) {
	doer := &stubDoer{}
	notifier := NewChatNotifier("", "UTC", WithHTTPClient(doer))

	if err := notifier.Send(context.Background(), "nowhere to go"); err != nil {
		t.Fatalf("expected nil when unconfigured, got %v", err)
	}
	if doer.calls != 0 {
		t.Fatalf("expected no send attempt, got %d", doer.calls)
	}
}

func TestChatNotifier_EmptyMessageIsDropped(t *testing.T) {
	doer := &stubDoer{}
	notifier := NewChatNotifier("https://chat.example/webhook", "UTC", WithHTTPClient(doer))

	if err := notifier.Send(context.Background(), "   "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if doer.calls != 0 {
		t.Fatalf("expected empty message to be dropped")
	}
}

func TestChatNotifier_RequestCarriesDeadline(t *testing.T) {
	doer := &stubDoer{}
	notifier := NewChatNotifier("https://chat.example/webhook", "UTC", WithHTTPClient(doer), WithTimeout(10*time.Second))

	if err := notifier.Send(context.Background(), "deadline check"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok := doer.lastReq.Context().Deadline(); !ok {
		t.Fatalf("expected a deadline on the request context")
	}
}
