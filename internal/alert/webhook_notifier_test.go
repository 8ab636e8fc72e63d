package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_Notify_Success(t *testing.T) {
	var received webhookPayload
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL})

	err := notifier.Notify(context.Background(), testEvent(), "Problem: wan busy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Message != "Problem: wan busy" {
		t.Errorf("message = %q", received.Message)
	}
	if received.Event.ID != "e1" {
		t.Errorf("event.id = %q, want e1", received.Event.ID)
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", headers.Get("Content-Type"))
	}
}

func TestWebhookNotifier_Notify_HMACSignature(t *testing.T) {
	secret := "test-secret-key"
	var receivedSig string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: secret})

	err := notifier.Notify(context.Background(), testEvent(), "Resolved: wan busy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedSig == "" {
		t.Fatal("expected X-Signature header, got empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(receivedBody)
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	if receivedSig != expectedSig {
		t.Errorf("signature mismatch: got %q, want %q", receivedSig, expectedSig)
	}
}

func TestWebhookNotifier_Notify_CustomHeaders(t *testing.T) {
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Custom-Header": "custom-value"},
	})

	if err := notifier.Notify(context.Background(), testEvent(), "Problem: x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers.Get("X-Custom-Header") != "custom-value" {
		t.Errorf("X-Custom-Header = %q", headers.Get("X-Custom-Header"))
	}
}

func TestWebhookNotifier_Notify_Non2xxError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	if err := notifier.Notify(context.Background(), testEvent(), "Problem: x"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestWebhookNotifier_Notify_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := notifier.Notify(ctx, testEvent(), "Problem: x"); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestWebhookNotifier_Type(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{URL: "http://example.com"})
	if n.Type() != "webhook" {
		t.Errorf("Type() = %q, want webhook", n.Type())
	}
}
