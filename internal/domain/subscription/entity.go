package subscription

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents subscription status
type Status string

const (
	StatusNone      Status = "none"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Plan represents a paid plan. ReferralCommissionRate is the percentage of
// the plan price credited to the referrer of a paying user.
type Plan struct {
	ID                     string          `db:"id" json:"id"`
	Name                   string          `db:"name" json:"name"`
	Price                  decimal.Decimal `db:"price" json:"price"`
	Currency               string          `db:"currency" json:"currency"`
	ReferralCommissionRate decimal.Decimal `db:"referral_commission_rate" json:"referral_commission_rate"`
	DurationDays           int             `db:"duration_days" json:"duration_days"`
	IsActive               bool            `db:"is_active" json:"is_active"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
}

// Subscription represents a user's entitlement to a plan. One row per
// (user, plan); re-activation updates the row in place.
type Subscription struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	PlanID    string       `db:"plan_id" json:"plan_id"`
	Status    Status       `db:"status" json:"status"`
	StartedAt time.Time    `db:"started_at" json:"started_at"`
	ExpiresAt sql.NullTime `db:"expires_at" json:"expires_at,omitempty"`
	Metadata  Metadata     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// IsActive checks status and expiry
func (s *Subscription) IsActive() bool {
	if s.Status != StatusActive {
		return false
	}
	if !s.ExpiresAt.Valid {
		return true
	}
	return time.Now().Before(s.ExpiresAt.Time)
}

// Metadata carries the triggering transaction id and gateway reference of the
// payment that produced the current entitlement
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
