package referralcredit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

const creditColumns = `id, user_id, credit_type, credit_amount, used_amount, remaining_amount,
	status, is_expired, expired_at, expiry_date, created_at, updated_at`

const transactionColumns = `id, user_id, credit_id, transaction_type, amount, applied_to_type,
	applied_to_id, description, refunded_at, refund_of, created_at`

// Repository provides referral credit ledger storage. Methods that take a
// *sqlx.Tx must run inside the caller's transaction.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListAvailable returns spendable credits, oldest expiry first
func (r *Repository) ListAvailable(ctx context.Context, userID uuid.UUID, now time.Time) ([]Credit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	credits := make([]Credit, 0)
	err := r.db.SelectContext(ctx, &credits, `
		SELECT `+creditColumns+`
		FROM referral_credits
		WHERE user_id = $1 AND status = 'active' AND remaining_amount > 0 AND expiry_date >= $2
		ORDER BY expiry_date ASC, id ASC
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: list available credits: %v", ErrInternal, err)
	}
	return credits, nil
}

// LockAvailable is ListAvailable with row locks taken in expiry order.
// Every path that locks several credits of one user uses this order.
func (r *Repository) LockAvailable(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, now time.Time) ([]Credit, error) {
	credits := make([]Credit, 0)
	err := tx.SelectContext(ctx, &credits, `
		SELECT `+creditColumns+`
		FROM referral_credits
		WHERE user_id = $1 AND status = 'active' AND remaining_amount > 0 AND expiry_date >= $2
		ORDER BY expiry_date ASC, id ASC
		FOR UPDATE
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: lock available credits: %v", ErrInternal, err)
	}
	return credits, nil
}

// FindApplication returns the live "used" rows of an earlier application
// to the same business transaction.
func (r *Repository) FindApplication(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, appliedToType, appliedToID string) ([]Transaction, error) {
	txs := make([]Transaction, 0)
	err := tx.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE user_id = $1 AND transaction_type = 'used'
		  AND applied_to_type = $2 AND applied_to_id = $3
		  AND refunded_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, userID, appliedToType, appliedToID)
	if err != nil {
		return nil, fmt.Errorf("%w: find application: %v", ErrInternal, err)
	}
	return txs, nil
}

// UpdateUsage sets used_amount and status of a locked credit
func (r *Repository) UpdateUsage(ctx context.Context, tx *sqlx.Tx, creditID uuid.UUID, usedAmount decimal.Decimal, status CreditStatus, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE referral_credits
		SET used_amount = $2, status = $3, updated_at = $4
		WHERE id = $1
	`, creditID, usedAmount, string(status), now)
	if err != nil {
		return fmt.Errorf("%w: update credit usage: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrCreditNotFound
	}
	return nil
}

// InsertTransactions appends ledger rows in one statement
func (r *Repository) InsertTransactions(ctx context.Context, tx *sqlx.Tx, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, credit_id, transaction_type, amount, applied_to_type, applied_to_id, description, refund_of, created_at
		)
		VALUES (
			:id, :user_id, :credit_id, :transaction_type, :amount, :applied_to_type, :applied_to_id, :description, :refund_of, :created_at
		)
	`, txs)
	if err != nil {
		return fmt.Errorf("%w: insert transactions: %v", ErrInternal, err)
	}
	return nil
}

// LockUsedTransaction locks a "used" ledger row, nil when there is none
func (r *Repository) LockUsedTransaction(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := tx.GetContext(ctx, &t, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE id = $1 AND transaction_type = 'used'
		FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: lock transaction: %v", ErrInternal, err)
	}
	return &t, nil
}

// LockCredit locks one credit row, nil when there is none
func (r *Repository) LockCredit(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Credit, error) {
	var c Credit
	err := tx.GetContext(ctx, &c, `SELECT `+creditColumns+` FROM referral_credits WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: lock credit: %v", ErrInternal, err)
	}
	return &c, nil
}

// MarkRefunded stamps a "used" row as reversed
func (r *Repository) MarkRefunded(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE credit_transactions SET refunded_at = $2
		WHERE id = $1 AND refunded_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("%w: mark refunded: %v", ErrInternal, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrAlreadyRefunded
	}
	return nil
}

// ExpireDue flips every overdue active credit to expired and returns exactly
// the rows this statement changed.
func (r *Repository) ExpireDue(ctx context.Context, tx *sqlx.Tx, now time.Time) ([]Credit, error) {
	credits := make([]Credit, 0)
	err := tx.SelectContext(ctx, &credits, `
		UPDATE referral_credits
		SET status = 'expired', is_expired = TRUE, expired_at = $1, updated_at = $1
		WHERE status = 'active' AND expiry_date < $1
		RETURNING `+creditColumns, now)
	if err != nil {
		return nil, fmt.Errorf("%w: expire credits: %v", ErrInternal, err)
	}
	return credits, nil
}

// ListExpiring returns active credits with balance that expire in [from, until],
// joined with the owner's contact data and ordered by user.
func (r *Repository) ListExpiring(ctx context.Context, from, until time.Time) ([]expiringRow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]expiringRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id AS credit_id, c.user_id, c.credit_type, c.remaining_amount, c.expiry_date,
		       u.email, u.phone, u.full_name
		FROM referral_credits c
		JOIN users u ON u.id = c.user_id
		WHERE c.status = 'active' AND c.remaining_amount > 0
		  AND c.expiry_date >= $1 AND c.expiry_date <= $2
		ORDER BY c.user_id, c.expiry_date ASC, c.id ASC
	`, from, until)
	if err != nil {
		return nil, fmt.Errorf("%w: list expiring credits: %v", ErrInternal, err)
	}
	return rows, nil
}

// ListByUser returns every credit a user ever held
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Credit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	credits := make([]Credit, 0)
	err := r.db.SelectContext(ctx, &credits, `
		SELECT `+creditColumns+`
		FROM referral_credits
		WHERE user_id = $1
		ORDER BY expiry_date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list credits: %v", ErrInternal, err)
	}
	return credits, nil
}

// ListTransactions returns a user's ledger, newest first
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txs := make([]Transaction, 0)
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrInternal, err)
	}
	return txs, nil
}
