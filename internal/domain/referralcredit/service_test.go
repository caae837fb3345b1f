package referralcredit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creditCols = []string{"id", "user_id", "credit_type", "credit_amount", "used_amount", "remaining_amount",
		"status", "is_expired", "expired_at", "expiry_date", "created_at", "updated_at"}
	transactionCols = []string{"id", "user_id", "credit_id", "transaction_type", "amount", "applied_to_type",
		"applied_to_id", "description", "refunded_at", "refund_of", "created_at"}

	lockAvailableSQL   = regexp.QuoteMeta("FROM referral_credits WHERE user_id = $1 AND status = 'active'") + ".*" + regexp.QuoteMeta("FOR UPDATE")
	findApplicationSQL = regexp.QuoteMeta("AND applied_to_type = $2 AND applied_to_id = $3 AND refunded_at IS NULL")
	updateUsageSQL     = regexp.QuoteMeta("UPDATE referral_credits SET used_amount = $2, status = $3")
	insertTxSQL        = regexp.QuoteMeta("INSERT INTO credit_transactions")
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(sqlx.NewDb(db, "postgres"), DefaultPolicy())
	svc.now = func() time.Time { return now }
	return svc, mock, now
}

func addCredit(rows *sqlmock.Rows, id, userID uuid.UUID, amount, used, remaining, status string, expiry, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id.String(), userID.String(), "referral_bonus", amount, used, remaining, status, false, nil, expiry, now, now)
}

func TestApplyCreditsFIFOAcrossTwoCredits(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()
	a, b := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, a, userID, "30.00", "0.00", "30.00", "active", now.AddDate(0, 0, 5), now)
	addCredit(rows, b, userID, "100.00", "0.00", "100.00", "active", now.AddDate(0, 0, 20), now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WithArgs(userID, sqlmock.AnyArg()).WillReturnRows(rows)
	mock.ExpectQuery(findApplicationSQL).WithArgs(userID, "loan_fee", "fee-1").WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectExec(updateUsageSQL).WithArgs(a, "30", "used", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateUsageSQL).WithArgs(b, "20", "active", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), userID, dec("50"), "loan_fee", "fee-1")
	require.NoError(t, err)

	assert.True(t, result.CreditsApplied.Equal(dec("50")))
	assert.True(t, result.RemainingAmount.IsZero())
	require.Len(t, result.AppliedCredits, 2)
	assert.Equal(t, a, result.AppliedCredits[0].CreditID)
	assert.True(t, result.AppliedCredits[0].AmountUsed.Equal(dec("30")))
	assert.Equal(t, b, result.AppliedCredits[1].CreditID)
	assert.True(t, result.AppliedCredits[1].AmountUsed.Equal(dec("20")))
	assert.False(t, result.Replayed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsCapAt200(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()
	id := uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, id, userID, "500.00", "0.00", "500.00", "active", now.AddDate(0, 1, 0), now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(rows)
	mock.ExpectQuery(findApplicationSQL).WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectExec(updateUsageSQL).WithArgs(id, "200", "active", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), userID, dec("1000"), "investment_fee", "inv-9")
	require.NoError(t, err)
	assert.True(t, result.CreditsApplied.Equal(dec("200")))
	assert.True(t, result.RemainingAmount.Equal(dec("800")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsBelowMinimumTouchesNothing(t *testing.T) {
	svc, mock, _ := newMockService(t)

	_, err := svc.ApplyCredits(context.Background(), uuid.New(), dec("4.99"), "loan_fee", "fee-1")
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = svc.ApplyCredits(context.Background(), uuid.New(), dec("0"), "loan_fee", "fee-1")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.ApplyCredits(context.Background(), uuid.New(), dec("10"), "loan_fee", "")
	assert.ErrorIs(t, err, ErrMissingReference)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsRejectsSubCentAmounts(t *testing.T) {
	svc, mock, _ := newMockService(t)

	for _, amount := range []string{"9.995", "10.001", "5.0000001"} {
		_, err := svc.ApplyCredits(context.Background(), uuid.New(), dec(amount), "loan_fee", "fee-1")
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsAcceptsTrailingZeros(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID, creditID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, creditID, userID, "10.00", "0.00", "10.00", "active", now.AddDate(0, 0, 5), now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(rows)
	mock.ExpectQuery(findApplicationSQL).WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectExec(updateUsageSQL).WithArgs(creditID, "10", "used", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), userID, dec("10.000"), "loan_fee", "fee-1")
	require.NoError(t, err)
	assert.True(t, result.CreditsApplied.Equal(dec("10")))
	assert.True(t, result.RemainingAmount.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsNoCreditsAvailable(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(sqlmock.NewRows(creditCols))
	mock.ExpectQuery(findApplicationSQL).WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), uuid.New(), dec("25"), "loan_fee", "fee-2")
	require.NoError(t, err)
	assert.True(t, result.CreditsApplied.IsZero())
	assert.True(t, result.RemainingAmount.Equal(dec("25")))
	assert.Empty(t, result.AppliedCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsReplayWritesNothing(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()
	creditID := uuid.New()
	txID := uuid.New()

	credits := sqlmock.NewRows(creditCols)
	addCredit(credits, creditID, userID, "100.00", "40.00", "60.00", "active", now.AddDate(0, 0, 10), now)

	prior := sqlmock.NewRows(transactionCols).
		AddRow(txID.String(), userID.String(), creditID.String(), "used", "40.00", "loan_fee", "fee-1", "Applied to loan_fee fee-1", nil, nil, now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(credits)
	mock.ExpectQuery(findApplicationSQL).WithArgs(userID, "loan_fee", "fee-1").WillReturnRows(prior)
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), userID, dec("40"), "loan_fee", "fee-1")
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.True(t, result.CreditsApplied.Equal(dec("40")))
	require.Len(t, result.AppliedCredits, 1)
	assert.Equal(t, txID, result.AppliedCredits[0].TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsReplayWithSmallerAmountNeverGoesNegative(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID, creditID := uuid.New(), uuid.New()

	prior := sqlmock.NewRows(transactionCols).
		AddRow(uuid.NewString(), userID.String(), creditID.String(), "used", "40.00", "loan_fee", "fee-1", "", nil, nil, now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(sqlmock.NewRows(creditCols))
	mock.ExpectQuery(findApplicationSQL).WithArgs(userID, "loan_fee", "fee-1").WillReturnRows(prior)
	mock.ExpectCommit()

	result, err := svc.ApplyCredits(context.Background(), userID, dec("25"), "loan_fee", "fee-1")
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.True(t, result.CreditsApplied.Equal(dec("40")))
	assert.True(t, result.RemainingAmount.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsReadFailureRollsBack(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	_, err := svc.ApplyCredits(context.Background(), uuid.New(), dec("50"), "loan_fee", "fee-1")
	assert.ErrorIs(t, err, ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCreditsWriteFailureRollsBack(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, uuid.New(), userID, "30.00", "0.00", "30.00", "active", now.AddDate(0, 0, 5), now)
	addCredit(rows, uuid.New(), userID, "30.00", "0.00", "30.00", "active", now.AddDate(0, 0, 6), now)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAvailableSQL).WillReturnRows(rows)
	mock.ExpectQuery(findApplicationSQL).WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectExec(updateUsageSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateUsageSQL).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := svc.ApplyCredits(context.Background(), userID, dec("50"), "loan_fee", "fee-3")
	assert.ErrorIs(t, err, ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailableCreditsReturnsStoreError(t *testing.T) {
	svc, mock, _ := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM referral_credits WHERE user_id = $1")).WillReturnError(errors.New("timeout"))

	_, err := svc.GetAvailableCredits(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInternal)
}

func TestGetAvailableCreditsTotals(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, uuid.New(), userID, "30.00", "0.00", "30.00", "active", now.AddDate(0, 0, 5), now)
	addCredit(rows, uuid.New(), userID, "100.00", "12.50", "87.50", "active", now.AddDate(0, 0, 20), now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY expiry_date ASC, id ASC")).WithArgs(userID, now).WillReturnRows(rows)

	got, err := svc.GetAvailableCredits(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, got.TotalAvailable.Equal(dec("117.5")))
	assert.Len(t, got.Credits, 2)
}

func TestGetBalanceSummary(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()

	rows := sqlmock.NewRows(creditCols)
	addCredit(rows, uuid.New(), userID, "100.00", "12.50", "87.50", "active", now.AddDate(0, 0, 20), now)
	addCredit(rows, uuid.New(), userID, "25.00", "0.00", "25.00", "cancelled", now.AddDate(0, 0, 40), now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM referral_credits WHERE user_id = $1 ORDER BY")).WithArgs(userID).WillReturnRows(rows)

	summary, err := svc.GetBalanceSummary(context.Background(), userID)
	require.NoError(t, err)

	assert.True(t, summary.TotalEarned.Equal(dec("125")))
	assert.True(t, summary.TotalUsed.Equal(dec("12.5")))
	assert.True(t, summary.TotalAvailable.Equal(dec("87.5")))
	assert.True(t, summary.ExpiringSoon.Equal(dec("87.5")))
	assert.True(t, summary.TotalCancelled.Equal(dec("25")))
	assert.Equal(t, 1, summary.ActiveCredits)
	assert.Equal(t, 2, summary.ByType["referral_bonus"].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsClampsPaging(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID, creditID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(userID, 20, 0).
		WillReturnRows(sqlmock.NewRows(transactionCols).
			AddRow(uuid.NewString(), userID.String(), creditID.String(), "used", "30.00", "loan_fee", "fee-1", "", nil, nil, now))

	txs, err := svc.ListTransactions(context.Background(), userID, 500, -4)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, TxUsed, txs[0].TransactionType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var (
	lockUsedSQL     = regexp.QuoteMeta("WHERE id = $1 AND transaction_type = 'used' FOR UPDATE")
	lockCreditSQL   = regexp.QuoteMeta("FROM referral_credits WHERE id = $1 FOR UPDATE")
	markRefundedSQL = regexp.QuoteMeta("UPDATE credit_transactions SET refunded_at = $2")
)

func TestRefundCreditRestoresUsage(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID, creditID, txID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUsedSQL).WithArgs(txID).WillReturnRows(sqlmock.NewRows(transactionCols).
		AddRow(txID.String(), userID.String(), creditID.String(), "used", "30.00", "loan_fee", "fee-1", "", nil, nil, now))
	credit := sqlmock.NewRows(creditCols)
	addCredit(credit, creditID, userID, "30.00", "30.00", "0.00", "used", now.AddDate(0, 0, 5), now)
	mock.ExpectQuery(lockCreditSQL).WithArgs(creditID).WillReturnRows(credit)
	mock.ExpectExec(updateUsageSQL).WithArgs(creditID, "0", "active", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markRefundedSQL).WithArgs(txID, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.RefundCredit(context.Background(), txID)
	require.NoError(t, err)
	assert.True(t, result.RefundAmount.Equal(dec("30")))
	assert.Equal(t, creditID, result.CreditID)
	assert.Equal(t, StatusActive, result.CreditStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundCreditTwiceRejected(t *testing.T) {
	svc, mock, now := newMockService(t)
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUsedSQL).WithArgs(txID).WillReturnRows(sqlmock.NewRows(transactionCols).
		AddRow(txID.String(), uuid.NewString(), uuid.NewString(), "used", "30.00", "loan_fee", "fee-1", "", now, nil, now))
	mock.ExpectRollback()

	_, err := svc.RefundCredit(context.Background(), txID)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundCreditMissingTransaction(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUsedSQL).WillReturnRows(sqlmock.NewRows(transactionCols))
	mock.ExpectRollback()

	_, err := svc.RefundCredit(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundCreditMissingCredit(t *testing.T) {
	svc, mock, now := newMockService(t)
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUsedSQL).WillReturnRows(sqlmock.NewRows(transactionCols).
		AddRow(txID.String(), uuid.NewString(), uuid.NewString(), "used", "10.00", nil, nil, "", nil, nil, now))
	mock.ExpectQuery(lockCreditSQL).WillReturnRows(sqlmock.NewRows(creditCols))
	mock.ExpectRollback()

	_, err := svc.RefundCredit(context.Background(), txID)
	assert.ErrorIs(t, err, ErrCreditNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoExpireCreditsIsIdempotent(t *testing.T) {
	svc, mock, now := newMockService(t)
	expireSQL := regexp.QuoteMeta("UPDATE referral_credits SET status = 'expired', is_expired = TRUE")

	expired := sqlmock.NewRows(creditCols)
	addCredit(expired, uuid.New(), uuid.New(), "25.00", "5.00", "20.00", "expired", now.AddDate(0, 0, -1), now)
	addCredit(expired, uuid.New(), uuid.New(), "10.00", "0.00", "10.00", "expired", now.AddDate(0, 0, -3), now)

	mock.ExpectBegin()
	mock.ExpectQuery(expireSQL).WithArgs(now).WillReturnRows(expired)
	mock.ExpectExec(insertTxSQL).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(expireSQL).WithArgs(now).WillReturnRows(sqlmock.NewRows(creditCols))
	mock.ExpectCommit()

	first, err := svc.AutoExpireCredits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.ExpiredCount)
	assert.True(t, first.ExpiredAmount.Equal(dec("30")))

	second, err := svc.AutoExpireCredits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ExpiredCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendExpirationWarningsDefaultsWindow(t *testing.T) {
	svc, mock, now := newMockService(t)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = c.user_id")).
		WithArgs(now, now.AddDate(0, 0, 7)).
		WillReturnRows(sqlmock.NewRows([]string{"credit_id", "user_id", "credit_type", "remaining_amount", "expiry_date", "email", "phone", "full_name"}).
			AddRow(uuid.NewString(), userID.String(), "referral_bonus", "12.00", now.AddDate(0, 0, 2), "a@crowdlend.io", nil, "Ann Lee").
			AddRow(uuid.NewString(), userID.String(), "referral_bonus", "3.00", now.AddDate(0, 0, 6), "a@crowdlend.io", nil, "Ann Lee"))

	result, err := svc.SendExpirationWarnings(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.WarningsSent)
	assert.True(t, result.Notifications[0].TotalExpiring.Equal(dec("15")))
	assert.Equal(t, "Ann Lee", result.Notifications[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
