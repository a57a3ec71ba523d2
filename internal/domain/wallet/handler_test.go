package wallet_test

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/swapcash/swapcash-api/internal/domain/wallet"
)

func sign(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	handler := wallet.NewHandler(nil, "sk_test_secret")

	body := `{"event":"charge.success","data":{"reference":"dep_abc"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
	req.Header.Set("X-Paystack-Signature", "deadbeef")
	rec := httptest.NewRecorder()

	handler.PaystackWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestPaystackWebhookIgnoresUnknownEvent(t *testing.T) {
	handler := wallet.NewHandler(nil, "sk_test_secret")

	body := `{"event":"customeridentification.success","data":{}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
	req.Header.Set("X-Paystack-Signature", sign("sk_test_secret", body))
	rec := httptest.NewRecorder()

	handler.PaystackWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rec.Code)
	}
}

func TestPaystackWebhookRejectsMalformedBody(t *testing.T) {
	handler := wallet.NewHandler(nil, "sk_test_secret")

	body := `not json`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
	req.Header.Set("X-Paystack-Signature", sign("sk_test_secret", body))
	rec := httptest.NewRecorder()

	handler.PaystackWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
