package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service owns all referral audit writes
type Service struct {
	repo Repository
}

// NewService creates referral service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Commission computes the referrer's cut of a paid amount. rate is a
// percentage, e.g. 10 means 10% of the paid amount.
func Commission(paidAmount, rate decimal.Decimal) decimal.Decimal {
	if paidAmount.Sign() <= 0 || rate.Sign() <= 0 {
		return decimal.Zero
	}
	return paidAmount.Mul(rate).Div(decimal.NewFromInt(100))
}

// RecordInput describes one commission payout to audit
type RecordInput struct {
	ReferrerID     uuid.UUID
	ReferredUserID uuid.UUID
	PlanID         string
	Commission     decimal.Decimal
	Currency       string
	TransactionID  uuid.UUID // the referred user's payment transaction
}

// RecordTx writes the audit row inside the same atomic scope as the wallet
// credit it documents. Called at most once per triggering transaction; the
// unique index on transaction_id enforces that structurally.
func (s *Service) RecordTx(ctx context.Context, tx *sqlx.Tx, in RecordInput) (*Referral, error) {
	ref := &Referral{
		ID:               uuid.New(),
		ReferrerID:       in.ReferrerID,
		ReferredUserID:   in.ReferredUserID,
		PlanID:           in.PlanID,
		CommissionAmount: in.Commission,
		Currency:         in.Currency,
		Status:           StatusRewarded,
		TransactionID:    in.TransactionID,
		RewardedAt:       time.Now(),
	}
	if err := s.repo.InsertTx(ctx, tx, ref); err != nil {
		return nil, err
	}

	log.Info().
		Str("referrer_id", in.ReferrerID.String()).
		Str("referred_user_id", in.ReferredUserID.String()).
		Str("commission", in.Commission.String()).
		Str("transaction_id", in.TransactionID.String()).
		Msg("referral commission rewarded")
	return ref, nil
}

// ListByReferrer returns a referrer's reward history
func (s *Service) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Referral, int, error) {
	return s.repo.ListByReferrer(ctx, referrerID, limit, offset)
}
