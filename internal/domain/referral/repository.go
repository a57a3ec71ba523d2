package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines referral audit data access
type Repository interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, ref *Referral) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Referral, int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates referral repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// InsertTx writes the audit row inside the caller's atomic scope. A second
// insert for the same triggering transaction hits the unique index and
// returns ErrAlreadyRewarded, aborting the enclosing transaction.
func (r *repository) InsertTx(ctx context.Context, tx *sqlx.Tx, ref *Referral) error {
	query := `
		INSERT INTO referrals (id, referrer_id, referred_user_id, plan_id,
			commission_amount, currency, status, transaction_id, rewarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		ref.ID, ref.ReferrerID, ref.ReferredUserID, ref.PlanID,
		ref.CommissionAmount, ref.Currency, ref.Status, ref.TransactionID, ref.RewardedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyRewarded
		}
		return fmt.Errorf("referral repository insert: %w", err)
	}
	return nil
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Referral, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID); err != nil {
		return nil, 0, fmt.Errorf("referral repository count: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var items []*Referral
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, referrer_id, referred_user_id, plan_id,
			commission_amount, currency, status, transaction_id, rewarded_at, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY rewarded_at DESC
		LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("referral repository list: %w", err)
	}
	return items, total, nil
}
