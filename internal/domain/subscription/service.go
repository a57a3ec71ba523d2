package subscription

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Service owns all subscription writes
type Service struct {
	repo Repository
}

// NewService creates subscription service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListPlans(ctx context.Context) ([]*Plan, error) {
	return s.repo.ListPlans(ctx)
}

func (s *Service) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// GetCurrent returns the user's latest subscription. A user who never paid
// gets a synthetic record with status "none".
func (s *Service) GetCurrent(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &Subscription{
			UserID: userID,
			Status: StatusNone,
		}, nil
	}
	return sub, nil
}

// ActivateTx is the idempotent entitlement upsert, run inside the payment's
// atomic scope. Activating an already-active plan is a success.
func (s *Service) ActivateTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, plan *Plan, meta Metadata) error {
	now := time.Now()
	sub := &Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    StatusActive,
		StartedAt: now,
		Metadata:  meta,
	}
	if plan.DurationDays > 0 {
		sub.ExpiresAt = sql.NullTime{Time: now.AddDate(0, 0, plan.DurationDays), Valid: true}
	}

	if err := s.repo.UpsertActiveTx(ctx, tx, sub); err != nil {
		return err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("plan_id", plan.ID).
		Msg("subscription activated")
	return nil
}

func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, reason string) error {
	sub, err := s.repo.GetLatestByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil || sub.Status != StatusActive {
		return ErrCannotCancelInactive
	}
	return s.repo.Cancel(ctx, sub.ID, reason)
}
