package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider constants
const (
	ProviderPaystack = "paystack"
)

var (
	// ErrUnavailable means the gateway could not be reached at all
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrDeclined means the gateway answered with an error payload
	ErrDeclined = errors.New("payment gateway declined the request")
)

// GatewayProvider is the boundary to an external payment provider. The
// gateway is treated as untrusted: callbacks may be duplicated or delayed,
// and only the verified amount is authoritative.
type GatewayProvider interface {
	// InitializeCharge creates a charge and returns a redirect URL plus the
	// reference used for all later correlation
	InitializeCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)

	// VerifyCharge fetches the authoritative state of a charge by reference
	VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error)

	// CreatePayoutRecipient registers an external bank account for payouts
	CreatePayoutRecipient(ctx context.Context, req RecipientRequest) (string, error)

	// InitiatePayout moves funds out to a previously registered recipient
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)

	// Name returns the provider identifier (e.g. "paystack")
	Name() string
}

// ChargeRequest is a standardized charge creation request
type ChargeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// ChargeResponse is a standardized charge creation response
type ChargeResponse struct {
	Reference   string
	RedirectURL string
}

// ChargeStatus is the gateway-confirmed state of a charge
type ChargeStatus struct {
	Reference string
	Status    string // normalized: completed, failed, pending
	Amount    decimal.Decimal
	Currency  string
}

// RecipientRequest describes an external payout destination
type RecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// PayoutRequest is a standardized payout initiation request
type PayoutRequest struct {
	Amount        decimal.Decimal
	RecipientCode string
	Reason        string
	Reference     string
}

// PayoutResult is a standardized payout initiation response
type PayoutResult struct {
	Status       string // normalized: completed, failed, pending
	TransferCode string
}

// ProviderFactory creates payment provider instances
type ProviderFactory struct {
	providers map[string]GatewayProvider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{providers: make(map[string]GatewayProvider)}
}

// Register adds a payment provider to the factory
func (f *ProviderFactory) Register(name string, provider GatewayProvider) {
	f.providers[name] = provider
}

// Get retrieves a payment provider by name
func (f *ProviderFactory) Get(name string) (GatewayProvider, error) {
	provider, exists := f.providers[name]
	if !exists {
		return nil, fmt.Errorf("payment provider '%s' not found", name)
	}
	return provider, nil
}

// MapStatusToInternal converts provider-specific status to internal status.
// Returns one of: "pending", "completed", "failed"
func MapStatusToInternal(providerStatus string) string {
	switch strings.ToLower(providerStatus) {
	case "success", "completed", "paid", "approved":
		return "completed"
	case "failed", "cancelled", "declined", "rejected", "reversed", "error":
		return "failed"
	default:
		// abandoned, pending, processing, otp, queued
		return "pending"
	}
}
