package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ListFilter narrows a transaction log query
type ListFilter struct {
	Type   TransactionType
	Status TransactionStatus
	Limit  int
	Offset int
}

// Repository defines ledger data access. Methods with a Tx suffix run inside
// a caller-owned transaction so multi-entity writes commit or abort as one.
type Repository interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID, currency string) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Transaction, int, error)
	UpdateTransactionMetadata(ctx context.Context, id uuid.UUID, meta Metadata) error

	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	GetByReferenceForUpdate(ctx context.Context, tx *sqlx.Tx, reference string) (*Transaction, error)
	LockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string) (*Wallet, error)
	AdjustBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta decimal.Decimal) error
	InsertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error
	MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, confirmedAmount decimal.Decimal, meta Metadata) error
	MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, meta Metadata) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates ledger repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const transactionColumns = `id, user_id, type, status, direction, amount, fee, currency,
	reference, counterpart_id, description, metadata, processed_at, created_at`

func (r *repository) EnsureWallet(ctx context.Context, userID uuid.UUID, currency string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, currency)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency)
	return err
}

func (r *repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT user_id, balance, currency, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet repository get: %w", err)
	}
	return &w, nil
}

func (r *repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, status, direction, amount, fee, currency,
			reference, counterpart_id, description, metadata, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.Type, t.Status, t.Direction, t.Amount, t.Fee, t.Currency,
		t.Reference, t.CounterpartID, t.Description, t.Metadata, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("wallet repository create transaction: %w", err)
	}
	return nil
}

func (r *repository) GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	var t Transaction
	err := r.db.GetContext(ctx, &t, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet repository get by reference: %w", err)
	}
	return &t, nil
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Transaction, int, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}

	if f.Type != "" {
		args = append(args, f.Type)
		where += ` AND type = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository count transactions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := `SELECT ` + transactionColumns + ` FROM transactions ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var items []*Transaction
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("wallet repository list transactions: %w", err)
	}
	return items, total, nil
}

func (r *repository) UpdateTransactionMetadata(ctx context.Context, id uuid.UUID, meta Metadata) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($2, '{}'::jsonb)
		WHERE id = $1
	`, id, meta)
	return err
}

func (r *repository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// GetByReferenceForUpdate locks the transaction row so concurrent
// verifications for the same reference serialize on it.
func (r *repository) GetByReferenceForUpdate(ctx context.Context, tx *sqlx.Tx, reference string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`
	var t Transaction
	err := tx.GetContext(ctx, &t, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet repository lock by reference: %w", err)
	}
	return &t, nil
}

// LockWallet acquires an exclusive row lock on the wallet for the duration
// of the enclosing transaction, creating the row first if needed.
func (r *repository) LockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, currency)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository ensure on lock: %w", err)
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, balance, currency, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("wallet repository lock: %w", err)
	}
	return &w, nil
}

// AdjustBalanceTx applies a relative balance change. Writes are deltas, not
// absolute values, so a wallet appearing in several roles within one
// transaction accumulates every credit instead of the last write winning.
func (r *repository) AdjustBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE user_id = $2
	`, delta, userID)
	return err
}

func (r *repository) InsertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, status, direction, amount, fee, currency,
			reference, counterpart_id, description, metadata, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.UserID, t.Type, t.Status, t.Direction, t.Amount, t.Fee, t.Currency,
		t.Reference, t.CounterpartID, t.Description, t.Metadata, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("wallet repository insert transaction: %w", err)
	}
	return nil
}

// MarkCompletedTx moves a pending transaction to completed, stamping the
// gateway-confirmed amount as authoritative. Guarded on status so terminal
// rows are never rewritten.
func (r *repository) MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, confirmedAmount decimal.Decimal, meta Metadata) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'completed',
			amount = $2,
			metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($3, '{}'::jsonb),
			processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, confirmedAmount, meta)
	if err != nil {
		return fmt.Errorf("wallet repository mark completed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTerminalTransaction
	}
	return nil
}

// MarkFailedTx moves a pending transaction to failed. Same terminal guard as
// MarkCompletedTx.
func (r *repository) MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, meta Metadata) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'failed',
			metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($2, '{}'::jsonb),
			processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, meta)
	if err != nil {
		return fmt.Errorf("wallet repository mark failed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTerminalTransaction
	}
	return nil
}
