package referral

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a referral reward. Rows are only written once the commission has
// actually been credited, so "rewarded" is the only state.
type Status string

const (
	StatusRewarded Status = "rewarded"
)

// Referral is the audit record proving a commission was paid exactly once
// for one confirmed subscription payment. TransactionID points at the
// triggering (referred user's) payment transaction.
type Referral struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ReferrerID       uuid.UUID       `db:"referrer_id" json:"referrer_id"`
	ReferredUserID   uuid.UUID       `db:"referred_user_id" json:"referred_user_id"`
	PlanID           string          `db:"plan_id" json:"plan_id"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	Currency         string          `db:"currency" json:"currency"`
	Status           Status          `db:"status" json:"status"`
	TransactionID    uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	RewardedAt       time.Time       `db:"rewarded_at" json:"rewarded_at"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
