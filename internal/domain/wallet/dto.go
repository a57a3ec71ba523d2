package wallet

import "github.com/shopspring/decimal"

type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

type TransferRequest struct {
	// Recipient accepts a user id, email, or username
	Recipient   string          `json:"recipient" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

type WithdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountName   string          `json:"account_name" validate:"required,max=100"`
	AccountNumber string          `json:"account_number" validate:"required,min=6,max=20"`
	BankCode      string          `json:"bank_code" validate:"required,max=10"`
}

type SubscriptionPaymentRequest struct {
	PlanID string `json:"plan_id" validate:"required,max=64"`
}

type TransactionQuery struct {
	Type   string `validate:"omitempty,tx_type"`
	Status string `validate:"omitempty,tx_status"`
	Limit  int    `validate:"omitempty,min=1,max=100"`
	Offset int    `validate:"omitempty,min=0"`
}
