package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/swapcash/swapcash-api/internal/pkg/paystack"
)

// PaystackProvider implements GatewayProvider for Paystack
type PaystackProvider struct {
	client *paystack.Client
}

// NewPaystackProvider creates a new Paystack payment provider
func NewPaystackProvider(cfg paystack.Config) *PaystackProvider {
	return &PaystackProvider{client: paystack.NewClient(cfg)}
}

// InitializeCharge creates a charge and returns the redirect URL
func (p *PaystackProvider) InitializeCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	resp, err := p.client.InitializeTransaction(ctx, paystack.InitializeTransactionRequest{
		Email:       req.Email,
		Amount:      paystack.ToMinorUnits(req.Amount),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, p.wrapErr("initialize charge", err)
	}
	return &ChargeResponse{Reference: resp.Reference, RedirectURL: resp.AuthorizationURL}, nil
}

// VerifyCharge fetches the authoritative charge state by reference
func (p *PaystackProvider) VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error) {
	resp, err := p.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, p.wrapErr("verify charge", err)
	}
	return &ChargeStatus{
		Reference: reference,
		Status:    MapStatusToInternal(resp.Status),
		Amount:    paystack.FromMinorUnits(resp.Amount),
		Currency:  resp.Currency,
	}, nil
}

// CreatePayoutRecipient registers an external bank account for payouts
func (p *PaystackProvider) CreatePayoutRecipient(ctx context.Context, req RecipientRequest) (string, error) {
	resp, err := p.client.CreateTransferRecipient(ctx, paystack.CreateTransferRecipientRequest{
		Type:          "nuban",
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Currency:      req.Currency,
	})
	if err != nil {
		return "", p.wrapErr("create payout recipient", err)
	}
	return resp.RecipientCode, nil
}

// InitiatePayout moves funds out to a registered recipient
func (p *PaystackProvider) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	resp, err := p.client.InitiateTransfer(ctx, paystack.InitiateTransferRequest{
		Source:    "balance",
		Amount:    paystack.ToMinorUnits(req.Amount),
		Recipient: req.RecipientCode,
		Reason:    req.Reason,
		Reference: req.Reference,
	})
	if err != nil {
		return nil, p.wrapErr("initiate payout", err)
	}
	return &PayoutResult{
		Status:       MapStatusToInternal(resp.Status),
		TransferCode: resp.TransferCode,
	}, nil
}

// Name returns the provider identifier
func (p *PaystackProvider) Name() string {
	return ProviderPaystack
}

func (p *PaystackProvider) wrapErr(op string, err error) error {
	var apiErr *paystack.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %s", op, ErrDeclined, apiErr.Message)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
