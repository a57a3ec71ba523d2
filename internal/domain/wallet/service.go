package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/swapcash/swapcash-api/internal/domain/referral"
	"github.com/swapcash/swapcash-api/internal/domain/subscription"
	"github.com/swapcash/swapcash-api/internal/domain/user"
	"github.com/swapcash/swapcash-api/internal/pkg/email"
	"github.com/swapcash/swapcash-api/internal/pkg/payment"
)

// Config holds ledger engine settings
type Config struct {
	Currency string
	// TransferFee is the flat fee debited from the sender on peer transfers
	TransferFee decimal.Decimal
	// PlatformFeeAccountID collects transfer fees. uuid.Nil means the fee is
	// debited but not credited to any wallet (retained off-ledger).
	PlatformFeeAccountID uuid.UUID
	CallbackURL          string
}

// Service is the ledger engine: the only writer of wallet balances and
// transaction status. Gateway calls always complete before any balance
// mutating database transaction is opened; no lock is ever held across an
// external call.
type Service struct {
	repo      Repository
	users     user.Repository
	gateway   payment.GatewayProvider
	subs      *subscription.Service
	referrals *referral.Service
	notifier  email.Notifier
	cfg       Config
}

// NewService creates the ledger engine
func NewService(repo Repository, users user.Repository, gateway payment.GatewayProvider, subs *subscription.Service, referrals *referral.Service, notifier email.Notifier, cfg Config) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		gateway:   gateway,
		subs:      subs,
		referrals: referrals,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// DepositIntent is the result of initiating a charge with the gateway
type DepositIntent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Reference     string    `json:"reference"`
	RedirectURL   string    `json:"redirect_url"`
}

// VerifyResult reports the outcome of an idempotent verification
type VerifyResult struct {
	Transaction      *Transaction `json:"transaction"`
	AlreadyProcessed bool         `json:"already_processed"`
}

// PayoutDestination identifies an external bank account for withdrawals
type PayoutDestination struct {
	Name          string
	AccountNumber string
	BankCode      string
}

// TransferResult reports both sides of a completed transfer
type TransferResult struct {
	DebitTransaction  *Transaction    `json:"debit_transaction"`
	CreditTransaction *Transaction    `json:"credit_transaction"`
	SenderBalance     decimal.Decimal `json:"sender_balance"`
}

// GetBalance returns the user's wallet, creating it on first touch
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := s.repo.EnsureWallet(ctx, userID, s.cfg.Currency); err != nil {
		return nil, err
	}
	return s.repo.GetWallet(ctx, userID)
}

// ListTransactions returns the user's transaction log
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Transaction, int, error) {
	return s.repo.ListTransactions(ctx, userID, f)
}

// InitiateDeposit creates a gateway charge and records a pending transaction
// carrying its reference. No balance mutation happens here.
func (s *Service) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*DepositIntent, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference := newReference("dep")
	charge, err := s.gateway.InitializeCharge(ctx, payment.ChargeRequest{
		Email:       u.Email,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Reference:   reference,
		CallbackURL: s.cfg.CallbackURL,
		Metadata:    map[string]string{"user_id": userID.String()},
	})
	if err != nil {
		return nil, s.mapGatewayErr(err)
	}

	t := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        TypeDeposit,
		Status:      StatusPending,
		Direction:   DirectionCredit,
		Amount:      amount,
		Fee:         decimal.Zero,
		Currency:    s.cfg.Currency,
		Reference:   sql.NullString{String: charge.Reference, Valid: true},
		Description: sql.NullString{String: description, Valid: description != ""},
		Metadata:    Metadata{MetaRequestedAmount: amount.String()},
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("reference", charge.Reference).
		Str("amount", amount.String()).
		Msg("deposit initiated")

	return &DepositIntent{TransactionID: t.ID, Reference: charge.Reference, RedirectURL: charge.RedirectURL}, nil
}

// VerifyDeposit confirms a charge with the gateway and, exactly once per
// reference, credits the wallet by the gateway-confirmed amount. Safe to
// retry any number of times.
func (s *Service) VerifyDeposit(ctx context.Context, reference string) (*VerifyResult, error) {
	return s.verifyCharge(ctx, reference)
}

// VerifySubscriptionPayment is the subscription flavor of charge
// verification: on first success it additionally activates the plan and pays
// the referral commission in the same atomic scope.
func (s *Service) VerifySubscriptionPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	return s.verifyCharge(ctx, reference)
}

func (s *Service) verifyCharge(ctx context.Context, reference string) (*VerifyResult, error) {
	status, err := s.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return nil, s.mapGatewayErr(err)
	}

	switch status.Status {
	case "completed":
		return s.confirmCharge(ctx, reference, status)
	case "failed":
		return s.failCharge(ctx, reference)
	default:
		// abandoned / still pending on the gateway side: leave our pending
		// row untouched, the caller may retry
		return nil, fmt.Errorf("%w: charge %s is %s", ErrGatewayError, reference, status.Status)
	}
}

// confirmCharge performs the exactly-once balance credit for a confirmed
// charge, plus subscription activation and referral commission when the
// charge paid for a plan. All plan/user reads happen before the database
// transaction opens.
func (s *Service) confirmCharge(ctx context.Context, reference string, status *payment.ChargeStatus) (*VerifyResult, error) {
	pending, err := s.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrTransactionNotFound
	}
	if pending.Type != TypeDeposit || pending.Direction != DirectionCredit {
		return nil, ErrTransactionNotFound
	}
	if pending.Status == StatusCompleted {
		return &VerifyResult{Transaction: pending, AlreadyProcessed: true}, nil
	}
	if status.Currency != "" && !strings.EqualFold(status.Currency, pending.Currency) {
		return nil, fmt.Errorf("%w: gateway reported %s, transaction is %s", ErrCurrencyMismatch, status.Currency, pending.Currency)
	}

	payer, err := s.users.GetByID(ctx, pending.UserID)
	if err != nil {
		return nil, err
	}

	var plan *subscription.Plan
	if pending.Metadata[MetaPurpose] == PurposeSubscription {
		plan, err = s.subs.GetPlan(ctx, pending.Metadata[MetaPlanID])
		if err != nil {
			return nil, err
		}
	}

	confirmed := status.Amount
	if !confirmed.Equal(pending.Amount) {
		// the gateway-confirmed amount is authoritative over the requested one
		log.Warn().
			Str("reference", reference).
			Str("requested", pending.Amount.String()).
			Str("confirmed", confirmed.String()).
			Msg("deposit amount mismatch, crediting confirmed amount")
	}

	commission := decimal.Zero
	rewardReferrer := uuid.Nil
	if plan != nil && payer.ReferrerID.Valid {
		commission = referral.Commission(confirmed, plan.ReferralCommissionRate)
		if commission.Sign() > 0 {
			rewardReferrer = payer.ReferrerID.UUID
		}
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// serialize concurrent verifications for this reference
	t, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.Status == StatusCompleted {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &VerifyResult{Transaction: t, AlreadyProcessed: true}, nil
	}
	if t.Status == StatusFailed {
		return nil, ErrTerminalTransaction
	}
	if t.Type != TypeDeposit || t.Direction != DirectionCredit {
		return nil, ErrTransactionNotFound
	}

	// wallet row locks serialize the balance writes; taken in ascending user
	// id order so the payer and referrer legs cannot deadlock
	if _, err := s.lockWalletsOrdered(ctx, tx, t.Currency, t.UserID, rewardReferrer); err != nil {
		return nil, err
	}

	if err := s.repo.AdjustBalanceTx(ctx, tx, t.UserID, confirmed); err != nil {
		return nil, err
	}
	if err := s.repo.MarkCompletedTx(ctx, tx, t.ID, confirmed, nil); err != nil {
		return nil, err
	}

	if plan != nil {
		meta := subscription.Metadata{
			"transaction_id":    t.ID.String(),
			"gateway_reference": reference,
		}
		if err := s.subs.ActivateTx(ctx, tx, t.UserID, plan, meta); err != nil {
			return nil, err
		}

		if rewardReferrer != uuid.Nil {
			if err := s.rewardCommission(ctx, tx, rewardReferrer, t, plan, commission); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	t.Status = StatusCompleted
	t.Amount = confirmed
	t.ProcessedAt = sql.NullTime{Time: time.Now(), Valid: true}

	s.notifyChargeConfirmed(ctx, payer, t, plan, commission, rewardReferrer)

	log.Info().
		Str("reference", reference).
		Str("user_id", t.UserID.String()).
		Str("amount", confirmed.String()).
		Bool("subscription", plan != nil).
		Msg("charge confirmed and credited")

	return &VerifyResult{Transaction: t}, nil
}

// rewardCommission credits the referrer and writes the referral transaction
// and audit row, all inside the caller's atomic scope. The referrer's wallet
// row is already exclusively locked, so concurrent commission events for the
// same referrer cannot lose updates.
func (s *Service) rewardCommission(ctx context.Context, tx *sqlx.Tx, referrerID uuid.UUID, trigger *Transaction, plan *subscription.Plan, commission decimal.Decimal) error {
	if err := s.repo.AdjustBalanceTx(ctx, tx, referrerID, commission); err != nil {
		return err
	}

	now := time.Now()
	commissionTxn := &Transaction{
		ID:            uuid.New(),
		UserID:        referrerID,
		Type:          TypeReferral,
		Status:        StatusCompleted,
		Direction:     DirectionCredit,
		Amount:        commission,
		Fee:           decimal.Zero,
		Currency:      trigger.Currency,
		CounterpartID: uuid.NullUUID{UUID: trigger.UserID, Valid: true},
		Description:   sql.NullString{String: "Referral commission: " + plan.Name, Valid: true},
		Metadata:      Metadata{MetaPlanID: plan.ID},
		ProcessedAt:   sql.NullTime{Time: now, Valid: true},
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, commissionTxn); err != nil {
		return err
	}

	_, err := s.referrals.RecordTx(ctx, tx, referral.RecordInput{
		ReferrerID:     referrerID,
		ReferredUserID: trigger.UserID,
		PlanID:         plan.ID,
		Commission:     commission,
		Currency:       trigger.Currency,
		TransactionID:  trigger.ID,
	})
	return err
}

// failCharge marks a pending transaction failed after an explicit gateway
// failure signal. No balance was credited, so no compensation is needed.
func (s *Service) failCharge(ctx context.Context, reference string) (*VerifyResult, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.Type != TypeDeposit || t.Direction != DirectionCredit {
		return nil, ErrTransactionNotFound
	}
	if t.IsTerminal() {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &VerifyResult{Transaction: t, AlreadyProcessed: true}, nil
	}

	if err := s.repo.MarkFailedTx(ctx, tx, t.ID, Metadata{MetaFailureReason: "gateway reported failure"}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	t.Status = StatusFailed
	return &VerifyResult{Transaction: t}, nil
}

// Transfer moves amount from sender to recipient synchronously. The fee is
// debited from the sender on top of the amount and credited to the platform
// fee account when one is configured.
func (s *Service) Transfer(ctx context.Context, senderID uuid.UUID, recipientSelector string, amount, fee decimal.Decimal, description string) (*TransferResult, error) {
	if amount.Sign() <= 0 || fee.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	recipient, err := s.users.Resolve(ctx, recipientSelector)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, ErrSelfTransfer
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	feeAccount := uuid.Nil
	if s.cfg.PlatformFeeAccountID != uuid.Nil && fee.Sign() > 0 {
		feeAccount = s.cfg.PlatformFeeAccountID
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	wallets, err := s.lockWalletsOrdered(ctx, tx, s.cfg.Currency, senderID, recipient.ID, feeAccount)
	if err != nil {
		return nil, err
	}

	total := amount.Add(fee)
	if wallets[senderID].Balance.LessThan(total) {
		return nil, ErrInsufficientBalance
	}

	// delta writes, so the same wallet may appear in several roles (e.g. the
	// fee account receiving a transfer) without one credit overwriting another
	if err := s.repo.AdjustBalanceTx(ctx, tx, senderID, total.Neg()); err != nil {
		return nil, err
	}
	if err := s.repo.AdjustBalanceTx(ctx, tx, recipient.ID, amount); err != nil {
		return nil, err
	}
	if feeAccount != uuid.Nil {
		if err := s.repo.AdjustBalanceTx(ctx, tx, feeAccount, fee); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	debit := &Transaction{
		ID:            uuid.New(),
		UserID:        senderID,
		Type:          TypeTransfer,
		Status:        StatusCompleted,
		Direction:     DirectionDebit,
		Amount:        amount,
		Fee:           fee,
		Currency:      s.cfg.Currency,
		CounterpartID: uuid.NullUUID{UUID: recipient.ID, Valid: true},
		Description:   sql.NullString{String: description, Valid: description != ""},
		ProcessedAt:   sql.NullTime{Time: now, Valid: true},
	}
	credit := &Transaction{
		ID:            uuid.New(),
		UserID:        recipient.ID,
		Type:          TypeTransfer,
		Status:        StatusCompleted,
		Direction:     DirectionCredit,
		Amount:        amount,
		Fee:           decimal.Zero,
		Currency:      s.cfg.Currency,
		CounterpartID: uuid.NullUUID{UUID: senderID, Valid: true},
		Description:   sql.NullString{String: description, Valid: description != ""},
		ProcessedAt:   sql.NullTime{Time: now, Valid: true},
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, debit); err != nil {
		return nil, err
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, credit); err != nil {
		return nil, err
	}
	if feeAccount != uuid.Nil {
		feeTxn := &Transaction{
			ID:            uuid.New(),
			UserID:        feeAccount,
			Type:          TypeTransfer,
			Status:        StatusCompleted,
			Direction:     DirectionCredit,
			Amount:        fee,
			Fee:           decimal.Zero,
			Currency:      s.cfg.Currency,
			CounterpartID: uuid.NullUUID{UUID: senderID, Valid: true},
			Description:   sql.NullString{String: "Transfer fee", Valid: true},
			Metadata:      Metadata{MetaPurpose: "transfer_fee"},
			ProcessedAt:   sql.NullTime{Time: now, Valid: true},
		}
		if err := s.repo.InsertTransactionTx(ctx, tx, feeTxn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	senderBalance := wallets[senderID].Balance.Sub(total)
	if feeAccount == senderID {
		senderBalance = senderBalance.Add(fee)
	}
	s.notifyTransfer(sender, recipient, amount, fee)

	log.Info().
		Str("sender_id", senderID.String()).
		Str("recipient_id", recipient.ID.String()).
		Str("amount", amount.String()).
		Str("fee", fee.String()).
		Msg("transfer completed")

	return &TransferResult{DebitTransaction: debit, CreditTransaction: credit, SenderBalance: senderBalance}, nil
}

// InitiateWithdrawal debits the wallet and records a pending withdrawal
// before the payout is handed to the gateway. If the gateway does not report
// immediate success the row stays pending until HandlePayoutEvent settles it.
func (s *Service) InitiateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, dest PayoutDestination) (*Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference := newReference("wdr")

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := s.repo.LockWallet(ctx, tx, userID, s.cfg.Currency)
	if err != nil {
		return nil, err
	}
	if w.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	if err := s.repo.AdjustBalanceTx(ctx, tx, userID, amount.Neg()); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      TypeWithdrawal,
		Status:    StatusPending,
		Direction: DirectionDebit,
		Amount:    amount,
		Fee:       decimal.Zero,
		Currency:  s.cfg.Currency,
		Reference: sql.NullString{String: reference, Valid: true},
		Metadata: Metadata{
			MetaBankCode:      dest.BankCode,
			MetaAccountNumber: maskAccountNumber(dest.AccountNumber),
		},
	}
	if err := s.repo.InsertTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// gateway leg runs outside any database transaction
	recipientCode, err := s.gateway.CreatePayoutRecipient(ctx, payment.RecipientRequest{
		Name:          dest.Name,
		AccountNumber: dest.AccountNumber,
		BankCode:      dest.BankCode,
		Currency:      s.cfg.Currency,
	})
	if err != nil {
		return nil, s.settleFailedPayoutInit(ctx, reference, err)
	}

	payout, err := s.gateway.InitiatePayout(ctx, payment.PayoutRequest{
		Amount:        amount,
		RecipientCode: recipientCode,
		Reason:        "wallet withdrawal",
		Reference:     reference,
	})
	if err != nil {
		return nil, s.settleFailedPayoutInit(ctx, reference, err)
	}

	meta := Metadata{MetaRecipientCode: recipientCode}
	if payout.TransferCode != "" {
		meta[MetaTransferCode] = payout.TransferCode
	}
	if err := s.repo.UpdateTransactionMetadata(ctx, t.ID, meta); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("failed to store payout correlation metadata")
	}

	if payout.Status == "completed" {
		if err := s.settlePayout(ctx, reference, StatusCompleted, ""); err != nil {
			return nil, err
		}
		t.Status = StatusCompleted
	}

	s.notify(email.Event{
		Type:      email.EventWithdrawalInitiated,
		To:        u.Email,
		ToName:    u.FullName,
		Amount:    amount.StringFixed(2),
		Currency:  s.cfg.Currency,
		Reference: reference,
	})

	log.Info().
		Str("user_id", userID.String()).
		Str("reference", reference).
		Str("amount", amount.String()).
		Str("payout_status", payout.Status).
		Msg("withdrawal initiated")

	return t, nil
}

// settleFailedPayoutInit decides what to do when the gateway leg of a
// withdrawal errors after the balance was already debited. An explicit
// decline gets compensated immediately; an unreachable gateway leaves the
// row pending for webhook or manual reconciliation.
func (s *Service) settleFailedPayoutInit(ctx context.Context, reference string, gatewayErr error) error {
	if errors.Is(gatewayErr, payment.ErrDeclined) {
		if err := s.settlePayout(ctx, reference, StatusFailed, gatewayErr.Error()); err != nil {
			log.Error().Err(err).Str("reference", reference).Msg("failed to compensate declined payout")
		}
		return fmt.Errorf("%w: %v", ErrGatewayError, gatewayErr)
	}
	log.Warn().Err(gatewayErr).Str("reference", reference).Msg("payout state unknown, leaving withdrawal pending")
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, gatewayErr)
}

// HandlePayoutEvent settles a pending withdrawal from a gateway transfer
// webhook. Deliveries may repeat; terminal rows are left untouched.
func (s *Service) HandlePayoutEvent(ctx context.Context, reference, gatewayStatus string) error {
	switch payment.MapStatusToInternal(gatewayStatus) {
	case "completed":
		return s.settlePayout(ctx, reference, StatusCompleted, "")
	case "failed":
		return s.settlePayout(ctx, reference, StatusFailed, "gateway reported "+gatewayStatus)
	default:
		return nil
	}
}

// settlePayout finishes a pending withdrawal. Failure produces a
// compensating credit of the debited amount in the same atomic scope as the
// status transition.
func (s *Service) settlePayout(ctx context.Context, reference string, status TransactionStatus, reason string) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTransactionNotFound
	}
	// the webhook payload is untrusted: a transfer event naming a
	// non-withdrawal reference must not compensate a never-debited balance
	if t.Type != TypeWithdrawal {
		log.Warn().
			Str("reference", reference).
			Str("type", string(t.Type)).
			Msg("payout event for non-withdrawal reference ignored")
		return tx.Commit()
	}
	if t.IsTerminal() {
		return tx.Commit()
	}

	if status == StatusFailed {
		if _, err := s.repo.LockWallet(ctx, tx, t.UserID, t.Currency); err != nil {
			return err
		}
		if err := s.repo.AdjustBalanceTx(ctx, tx, t.UserID, t.Amount); err != nil {
			return err
		}
		if err := s.repo.MarkFailedTx(ctx, tx, t.ID, Metadata{MetaFailureReason: reason}); err != nil {
			return err
		}
	} else {
		if err := s.repo.MarkCompletedTx(ctx, tx, t.ID, t.Amount, nil); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if status == StatusFailed {
		if u, err := s.users.GetByID(ctx, t.UserID); err == nil {
			s.notify(email.Event{
				Type:      email.EventWithdrawalFailed,
				To:        u.Email,
				ToName:    u.FullName,
				Amount:    t.Amount.StringFixed(2),
				Currency:  t.Currency,
				Reference: reference,
			})
		}
	}

	log.Info().
		Str("reference", reference).
		Str("status", string(status)).
		Msg("withdrawal settled")
	return nil
}

// InitiateSubscriptionPayment creates a gateway charge for a plan's price
// and records a pending transaction tagged with the plan, so verification
// knows to activate the entitlement.
func (s *Service) InitiateSubscriptionPayment(ctx context.Context, userID uuid.UUID, planID string) (*DepositIntent, error) {
	plan, err := s.subs.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Price.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference := newReference("sub")
	charge, err := s.gateway.InitializeCharge(ctx, payment.ChargeRequest{
		Email:       u.Email,
		Amount:      plan.Price,
		Currency:    s.cfg.Currency,
		Reference:   reference,
		CallbackURL: s.cfg.CallbackURL,
		Metadata: map[string]string{
			"user_id": userID.String(),
			"plan_id": plan.ID,
		},
	})
	if err != nil {
		return nil, s.mapGatewayErr(err)
	}

	t := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        TypeDeposit,
		Status:      StatusPending,
		Direction:   DirectionCredit,
		Amount:      plan.Price,
		Fee:         decimal.Zero,
		Currency:    s.cfg.Currency,
		Reference:   sql.NullString{String: charge.Reference, Valid: true},
		Description: sql.NullString{String: "Subscription: " + plan.Name, Valid: true},
		Metadata: Metadata{
			MetaPurpose: PurposeSubscription,
			MetaPlanID:  plan.ID,
		},
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("plan_id", plan.ID).
		Str("reference", charge.Reference).
		Msg("subscription payment initiated")

	return &DepositIntent{TransactionID: t.ID, Reference: charge.Reference, RedirectURL: charge.RedirectURL}, nil
}

// lockWalletsOrdered acquires exclusive locks on the given wallets in
// ascending user-id order so concurrent multi-wallet operations cannot
// deadlock. uuid.Nil entries are skipped.
func (s *Service) lockWalletsOrdered(ctx context.Context, tx *sqlx.Tx, currency string, ids ...uuid.UUID) (map[uuid.UUID]*Wallet, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool {
		return strings.Compare(unique[i].String(), unique[j].String()) < 0
	})

	wallets := make(map[uuid.UUID]*Wallet, len(unique))
	for _, id := range unique {
		w, err := s.repo.LockWallet(ctx, tx, id, currency)
		if err != nil {
			return nil, err
		}
		wallets[id] = w
	}
	return wallets, nil
}

func (s *Service) mapGatewayErr(err error) error {
	if errors.Is(err, payment.ErrDeclined) {
		return fmt.Errorf("%w: %v", ErrGatewayError, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func (s *Service) notify(event email.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(event)
}

func (s *Service) notifyChargeConfirmed(ctx context.Context, payer *user.User, t *Transaction, plan *subscription.Plan, commission decimal.Decimal, referrerID uuid.UUID) {
	if plan == nil {
		s.notify(email.Event{
			Type:      email.EventDepositCompleted,
			To:        payer.Email,
			ToName:    payer.FullName,
			Amount:    t.Amount.StringFixed(2),
			Currency:  t.Currency,
			Reference: t.Reference.String,
		})
		return
	}

	s.notify(email.Event{
		Type:     email.EventSubscriptionActivated,
		To:       payer.Email,
		ToName:   payer.FullName,
		Plan:     plan.Name,
		Amount:   t.Amount.StringFixed(2),
		Currency: t.Currency,
	})

	if referrerID != uuid.Nil && commission.Sign() > 0 {
		if referrer, err := s.users.GetByID(ctx, referrerID); err == nil {
			s.notify(email.Event{
				Type:     email.EventCommissionEarned,
				To:       referrer.Email,
				ToName:   referrer.FullName,
				Amount:   commission.StringFixed(2),
				Currency: t.Currency,
			})
		}
	}
}

func (s *Service) notifyTransfer(sender, recipient *user.User, amount, fee decimal.Decimal) {
	s.notify(email.Event{
		Type:        email.EventTransferSent,
		To:          sender.Email,
		ToName:      sender.FullName,
		Amount:      amount.StringFixed(2),
		Currency:    s.cfg.Currency,
		Counterpart: recipient.Username,
		Fee:         fee.StringFixed(2),
	})
	s.notify(email.Event{
		Type:        email.EventTransferReceived,
		To:          recipient.Email,
		ToName:      recipient.FullName,
		Amount:      amount.StringFixed(2),
		Currency:    s.cfg.Currency,
		Counterpart: sender.Username,
	})
}

func newReference(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func maskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return strings.Repeat("*", len(accountNumber)-4) + accountNumber[len(accountNumber)-4:]
}
