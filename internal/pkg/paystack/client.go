package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Charge statuses reported by the gateway
const (
	ChargeStatusSuccess   = "success"
	ChargeStatusFailed    = "failed"
	ChargeStatusAbandoned = "abandoned"
	ChargeStatusPending   = "pending"
)

// Config holds Paystack API configuration
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client represents a Paystack payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
}

// APIError is an error payload returned by the gateway
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new Paystack API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransactionRequest represents a charge initialization request
type InitializeTransactionRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // minor units
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeTransactionResponse represents a charge initialization response
type InitializeTransactionResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyTransactionResponse represents the gateway-confirmed state of a charge
type VerifyTransactionResponse struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"` // minor units, authoritative
	Currency string `json:"currency"`
	Channel  string `json:"channel"`
	PaidAt   string `json:"paid_at"`
}

// CreateTransferRecipientRequest represents a payout recipient creation request
type CreateTransferRecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// CreateTransferRecipientResponse represents a payout recipient creation response
type CreateTransferRecipientResponse struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

// InitiateTransferRequest represents a payout initiation request
type InitiateTransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"` // minor units
	Recipient string `json:"recipient"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// InitiateTransferResponse represents a payout initiation response
type InitiateTransferResponse struct {
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
}

// InitializeTransaction creates a charge and returns the redirect URL
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (*InitializeTransactionResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("validation error: email must be non-empty")
	}

	var out InitializeTransactionResponse
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransaction fetches the gateway-side status of a charge by reference
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyTransactionResponse, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}

	var out VerifyTransactionResponse
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransferRecipient registers a bank account for payouts
func (c *Client) CreateTransferRecipient(ctx context.Context, req CreateTransferRecipientRequest) (*CreateTransferRecipientResponse, error) {
	if strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.BankCode) == "" {
		return nil, fmt.Errorf("validation error: account_number and bank_code must be non-empty")
	}
	if req.Type == "" {
		req.Type = "nuban"
	}

	var out CreateTransferRecipientResponse
	if err := c.call(ctx, http.MethodPost, "/transferrecipient", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitiateTransfer starts a payout to a previously created recipient
func (c *Client) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*InitiateTransferResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, fmt.Errorf("validation error: recipient must be non-empty")
	}
	if req.Source == "" {
		req.Source = "balance"
	}

	var out InitiateTransferResponse
	if err := c.call(ctx, http.MethodPost, "/transfer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("paystack client is not initialized")
	}
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return fmt.Errorf("paystack config error: secret_key is empty")
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode paystack request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("paystack api call failed: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("paystack api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read paystack response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode paystack response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode paystack response data: %w", err)
		}
	}
	return nil
}

// ToMinorUnits converts a decimal major-unit amount to gateway minor units
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts gateway minor units to a decimal major-unit amount
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
