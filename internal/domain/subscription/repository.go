package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const planCacheTTL = 5 * time.Minute

// Repository defines subscription data access
type Repository interface {
	// Plans
	GetPlanByID(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	// Subscriptions
	GetByUserAndPlan(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error)
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	UpsertActiveTx(ctx context.Context, tx *sqlx.Tx, sub *Subscription) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
}

type repository struct {
	db    *sqlx.DB
	cache *redis.Client
}

// NewRepository creates subscription repository. cache may be nil, in which
// case plan lookups always hit the database.
func NewRepository(db *sqlx.DB, cache *redis.Client) Repository {
	return &repository{db: db, cache: cache}
}

const planColumns = `id, name, price, currency, referral_commission_rate, duration_days, is_active, created_at`

func planCacheKey(id string) string { return "plan:" + id }

func (r *repository) GetPlanByID(ctx context.Context, id string) (*Plan, error) {
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, planCacheKey(id)).Bytes(); err == nil {
			var plan Plan
			if err := json.Unmarshal(raw, &plan); err == nil {
				return &plan, nil
			}
		}
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND is_active = true`
	var plan Plan
	err := r.db.GetContext(ctx, &plan, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscription repository get plan: %w", err)
	}

	if r.cache != nil {
		if raw, err := json.Marshal(&plan); err == nil {
			if err := r.cache.Set(ctx, planCacheKey(id), raw, planCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("plan_id", id).Msg("Failed to cache plan")
			}
		}
	}
	return &plan, nil
}

func (r *repository) ListPlans(ctx context.Context) ([]*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_active = true ORDER BY price`
	var plans []*Plan
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("subscription repository list plans: %w", err)
	}
	return plans, nil
}

const subscriptionColumns = `id, user_id, plan_id, status, started_at, expires_at, metadata, created_at, updated_at`

func (r *repository) GetByUserAndPlan(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 AND plan_id = $2`
	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscription repository get by user and plan: %w", err)
	}
	return &sub, nil
}

func (r *repository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscription repository get latest: %w", err)
	}
	return &sub, nil
}

// UpsertActiveTx activates the (user, plan) subscription inside the caller's
// transaction. Re-activation of an existing row is a success, not an error:
// it refreshes expiry and merges metadata.
func (r *repository) UpsertActiveTx(ctx context.Context, tx *sqlx.Tx, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, started_at, expires_at, metadata)
		VALUES ($1, $2, $3, 'active', $4, $5, $6)
		ON CONFLICT (user_id, plan_id) DO UPDATE SET
			status = 'active',
			expires_at = EXCLUDED.expires_at,
			metadata = COALESCE(subscriptions.metadata, '{}'::jsonb) || COALESCE(EXCLUDED.metadata, '{}'::jsonb),
			updated_at = NOW()
	`
	_, err := tx.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, sub.StartedAt, sub.ExpiresAt, sub.Metadata,
	)
	if err != nil {
		return fmt.Errorf("subscription repository upsert active: %w", err)
	}
	return nil
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	meta := Metadata{}
	if reason != "" {
		meta["cancel_reason"] = reason
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'cancelled',
		    metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($2, '{}'::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, id, meta)
	return err
}
