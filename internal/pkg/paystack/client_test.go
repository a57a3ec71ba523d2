package paystack_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/swapcash/swapcash-api/internal/pkg/paystack"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *paystack.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return paystack.NewClient(paystack.Config{
		BaseURL:   server.URL,
		SecretKey: "sk_test_secret",
	})
}

func TestInitializeTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("missing bearer auth, got %q", got)
		}

		var req paystack.InitializeTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Amount != 100050 {
			t.Errorf("expected amount 100050 minor units, got %d", req.Amount)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         req.Reference,
			},
		})
	})

	resp, err := client.InitializeTransaction(context.Background(), paystack.InitializeTransactionRequest{
		Email:     "user@test.com",
		Amount:    paystack.ToMinorUnits(decimal.RequireFromString("1000.50")),
		Currency:  "NGN",
		Reference: "dep_abc",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if resp.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected authorization url: %s", resp.AuthorizationURL)
	}
	if resp.Reference != "dep_abc" {
		t.Fatalf("reference not echoed: %s", resp.Reference)
	}
}

func TestInitializeTransactionValidation(t *testing.T) {
	client := paystack.NewClient(paystack.Config{SecretKey: "sk"})

	if _, err := client.InitializeTransaction(context.Background(), paystack.InitializeTransactionRequest{Email: "a@b.c", Amount: 0}); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := client.InitializeTransaction(context.Background(), paystack.InitializeTransactionRequest{Email: "", Amount: 100}); err == nil {
		t.Fatal("expected error for empty email")
	}
}

func TestVerifyTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/dep_abc" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":   "success",
				"amount":   100050,
				"currency": "NGN",
				"channel":  "card",
			},
		})
	})

	resp, err := client.VerifyTransaction(context.Background(), "dep_abc")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if resp.Status != paystack.ChargeStatusSuccess {
		t.Fatalf("expected success status, got %s", resp.Status)
	}
	if !paystack.FromMinorUnits(resp.Amount).Equal(decimal.RequireFromString("1000.50")) {
		t.Fatalf("minor unit roundtrip broken: %d", resp.Amount)
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Transaction reference not found",
		})
	})

	_, err := client.VerifyTransaction(context.Background(), "dep_missing")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *paystack.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Transaction reference not found" {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
}

func TestInitiateTransferDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req paystack.InitiateTransferRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Source != "balance" {
			t.Errorf("expected default source balance, got %q", req.Source)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Transfer queued",
			"data": map[string]any{
				"status":        "pending",
				"transfer_code": "TRF_x",
				"reference":     req.Reference,
			},
		})
	})

	resp, err := client.InitiateTransfer(context.Background(), paystack.InitiateTransferRequest{
		Amount:    50000,
		Recipient: "RCP_x",
		Reference: "wdr_abc",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if resp.TransferCode != "TRF_x" {
		t.Fatalf("unexpected transfer code: %s", resp.TransferCode)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"dep_abc","status":"success","amount":100050,"currency":"NGN"}}`)

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	if !paystack.VerifyWebhookSignature(secret, body, signature) {
		t.Fatal("valid signature rejected")
	}
	if paystack.VerifyWebhookSignature(secret, body, "deadbeef") {
		t.Fatal("invalid signature accepted")
	}
	if paystack.VerifyWebhookSignature(secret, append(body, ' '), signature) {
		t.Fatal("tampered body accepted")
	}
	if paystack.VerifyWebhookSignature("", body, signature) {
		t.Fatal("empty secret accepted")
	}

	event, err := paystack.ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Event != paystack.EventChargeSuccess || event.Data.Reference != "dep_abc" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
