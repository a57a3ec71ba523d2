package wallet

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a money movement
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypeReferral   TransactionType = "referral"
)

// TransactionStatus is the state machine of a transaction.
// completed and failed are terminal: no further status writes are permitted.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Direction tags which side of a movement a row records
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Metadata keys for residual gateway correlation data. Reference, direction,
// fee and counterpart are first-class columns; everything else lives here.
const (
	MetaPurpose         = "purpose"
	MetaPlanID          = "plan_id"
	MetaRecipientCode   = "recipient_code"
	MetaTransferCode    = "transfer_code"
	MetaBankCode        = "bank_code"
	MetaAccountNumber   = "account_number"
	MetaRequestedAmount = "requested_amount"
	MetaFailureReason   = "failure_reason"
)

// PurposeSubscription marks a deposit that pays for a plan
const PurposeSubscription = "subscription_payment"

// Wallet is the persisted per-user balance. Mutated only through the ledger
// service; balance never goes below zero as observed between transactions.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is one row of the transaction log. Immutable once completed
// or failed.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	UserID        uuid.UUID         `db:"user_id" json:"user_id"`
	Type          TransactionType   `db:"type" json:"type"`
	Status        TransactionStatus `db:"status" json:"status"`
	Direction     Direction         `db:"direction" json:"direction"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Fee           decimal.Decimal   `db:"fee" json:"fee"`
	Currency      string            `db:"currency" json:"currency"`
	Reference     sql.NullString    `db:"reference" json:"reference,omitempty"`
	CounterpartID uuid.NullUUID     `db:"counterpart_id" json:"counterpart_id,omitempty"`
	Description   sql.NullString    `db:"description" json:"description,omitempty"`
	Metadata      Metadata          `db:"metadata" json:"metadata,omitempty"`
	ProcessedAt   sql.NullTime      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// IsTerminal reports whether no further status transition is permitted
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Metadata is an opaque key-value bag stored as JSONB
type Metadata map[string]string

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner, handling NULL jsonb columns
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type: %T", src)
	}
}

// Merge returns a copy of m with the entries of other applied on top
func (m Metadata) Merge(other Metadata) Metadata {
	if len(other) == 0 {
		return m
	}
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
