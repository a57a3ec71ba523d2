package user

import (
	"time"

	"github.com/google/uuid"
)

// Status represents user account status
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User is the read-side view of a platform user the ledger needs: contact
// details for the gateway and notifications, plus the referral link.
type User struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	Email      string        `db:"email" json:"email"`
	Username   string        `db:"username" json:"username"`
	FullName   string        `db:"full_name" json:"full_name"`
	ReferrerID uuid.NullUUID `db:"referrer_id" json:"referrer_id,omitempty"`
	Status     Status        `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}
