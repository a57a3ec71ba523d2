package wallet

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrGatewayError        = errors.New("payment gateway error")
	ErrTerminalTransaction = errors.New("transaction is in a terminal state")
)
