package referralcredit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/crowdlend/crowdlend-api/internal/pkg/database"
	"github.com/crowdlend/crowdlend-api/internal/pkg/metrics"
)

// Policy holds the ledger limits
type Policy struct {
	MinTransactionAmount decimal.Decimal
	MaxPerTransaction    decimal.Decimal
	WarningDays          int
	ExpiringSoonDays     int
}

// DefaultPolicy returns the platform defaults
func DefaultPolicy() Policy {
	return Policy{
		MinTransactionAmount: decimal.NewFromInt(5),
		MaxPerTransaction:    decimal.NewFromInt(200),
		WarningDays:          7,
		ExpiringSoonDays:     30,
	}
}

// Service owns the referral credit lifecycle
type Service struct {
	db     *sqlx.DB
	repo   *Repository
	policy Policy
	now    func() time.Time
}

// NewService creates a new referral credit service
func NewService(db *sqlx.DB, policy Policy) *Service {
	return &Service{
		db:     db,
		repo:   NewRepository(db),
		policy: policy,
		now:    time.Now,
	}
}

// Policy returns the limits the service enforces
func (s *Service) Policy() Policy {
	return s.policy
}

// GetAvailableCredits returns spendable credits, oldest expiry first.
// Store failures are returned, never reported as an empty balance.
func (s *Service) GetAvailableCredits(ctx context.Context, userID uuid.UUID) (*AvailableCredits, error) {
	credits, err := s.repo.ListAvailable(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &AvailableCredits{TotalAvailable: sumAmounts(credits), Credits: credits}, nil
}

// ApplyCredits covers up to MaxPerTransaction of a business transaction with
// the user's credits, earliest expiry first. The whole application commits or
// rolls back as one unit. Repeating a call for the same transactionType and
// transactionID returns the original application without writing.
func (s *Service) ApplyCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, transactionType, transactionID string) (*ApplyResult, error) {
	// Amounts are stored as NUMERIC(12,2); a sub-cent amount would be rounded by the store
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.policy.MinTransactionAmount) {
		return nil, ErrBelowMinimum
	}
	if transactionType == "" || transactionID == "" {
		return nil, ErrMissingReference
	}

	now := s.now()
	result := &ApplyResult{
		CreditsApplied:  decimal.Zero,
		RemainingAmount: amount,
		AppliedCredits:  []AppliedCredit{},
	}

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// Lock first so a concurrent duplicate has committed before the replay check
		credits, err := s.repo.LockAvailable(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		prior, err := s.repo.FindApplication(ctx, tx, userID, transactionType, transactionID)
		if err != nil {
			return err
		}
		if len(prior) > 0 {
			result.Replayed = true
			for _, t := range prior {
				result.CreditsApplied = result.CreditsApplied.Add(t.Amount)
				result.AppliedCredits = append(result.AppliedCredits, AppliedCredit{
					CreditID:      t.CreditID,
					TransactionID: t.ID,
					AmountUsed:    t.Amount,
				})
			}
			result.RemainingAmount = decimal.Max(decimal.Zero, amount.Sub(result.CreditsApplied))
			return nil
		}

		allocations := allocate(credits, amount, s.policy.MaxPerTransaction)
		if len(allocations) == 0 {
			return nil
		}

		ledger := make([]Transaction, 0, len(allocations))
		for _, a := range allocations {
			used := a.credit.UsedAmount.Add(a.amount)
			if err := s.repo.UpdateUsage(ctx, tx, a.credit.ID, used, statusAfterUse(a.credit, used), now); err != nil {
				return err
			}

			t := Transaction{
				ID:              uuid.New(),
				UserID:          userID,
				CreditID:        a.credit.ID,
				TransactionType: TxUsed,
				Amount:          a.amount,
				AppliedToType:   &transactionType,
				AppliedToID:     &transactionID,
				Description:     fmt.Sprintf("Applied to %s %s", transactionType, transactionID),
				CreatedAt:       now,
			}
			ledger = append(ledger, t)

			result.CreditsApplied = result.CreditsApplied.Add(a.amount)
			result.AppliedCredits = append(result.AppliedCredits, AppliedCredit{
				CreditID:      a.credit.ID,
				TransactionID: t.ID,
				AmountUsed:    a.amount,
			})
		}

		if err := s.repo.InsertTransactions(ctx, tx, ledger); err != nil {
			return err
		}

		result.RemainingAmount = amount.Sub(result.CreditsApplied)
		return nil
	})
	if err != nil {
		metrics.RecordCreditApplication("failed", 0)
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("transaction_type", transactionType).
			Str("transaction_id", transactionID).
			Msg("credit application rolled back")
		return nil, err
	}

	switch {
	case result.Replayed:
		metrics.RecordCreditApplication("replayed", 0)
	case result.CreditsApplied.IsZero():
		metrics.RecordCreditApplication("no_credits", 0)
	default:
		metrics.RecordCreditApplication("applied", result.CreditsApplied.InexactFloat64())
		log.Info().
			Str("user_id", userID.String()).
			Str("applied", result.CreditsApplied.StringFixed(2)).
			Str("remaining", result.RemainingAmount.StringFixed(2)).
			Int("credits_touched", len(result.AppliedCredits)).
			Str("transaction_id", transactionID).
			Msg("referral credits applied")
	}

	return result, nil
}

// RefundCredit reverses one "used" transaction. A transaction can be
// refunded once; the second attempt returns ErrAlreadyRefunded.
func (s *Service) RefundCredit(ctx context.Context, transactionID uuid.UUID) (*RefundResult, error) {
	now := s.now()
	var result *RefundResult

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		used, err := s.repo.LockUsedTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if used == nil {
			return ErrTransactionNotFound
		}
		if used.RefundedAt != nil {
			return ErrAlreadyRefunded
		}

		credit, err := s.repo.LockCredit(ctx, tx, used.CreditID)
		if err != nil {
			return err
		}
		if credit == nil {
			return ErrCreditNotFound
		}

		newUsed := credit.UsedAmount.Sub(used.Amount)
		if newUsed.IsNegative() {
			return fmt.Errorf("%w: refund exceeds used amount of credit %s", ErrInternal, credit.ID)
		}
		status := statusAfterRefund(*credit)
		if err := s.repo.UpdateUsage(ctx, tx, credit.ID, newUsed, status, now); err != nil {
			return err
		}

		refundOf := used.ID
		refund := Transaction{
			ID:              uuid.New(),
			UserID:          used.UserID,
			CreditID:        credit.ID,
			TransactionType: TxRefunded,
			Amount:          used.Amount,
			AppliedToType:   used.AppliedToType,
			AppliedToID:     used.AppliedToID,
			Description:     fmt.Sprintf("Refund of transaction %s", used.ID),
			RefundOf:        &refundOf,
			CreatedAt:       now,
		}
		if err := s.repo.InsertTransactions(ctx, tx, []Transaction{refund}); err != nil {
			return err
		}
		if err := s.repo.MarkRefunded(ctx, tx, used.ID, now); err != nil {
			return err
		}

		result = &RefundResult{
			TransactionID:       used.ID,
			RefundTransactionID: refund.ID,
			CreditID:            credit.ID,
			RefundAmount:        used.Amount,
			CreditStatus:        status,
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrTransactionNotFound) && !errors.Is(err, ErrAlreadyRefunded) && !errors.Is(err, ErrCreditNotFound) {
			log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("credit refund rolled back")
		}
		return nil, err
	}

	metrics.RecordCreditRefund()
	log.Info().
		Str("transaction_id", transactionID.String()).
		Str("credit_id", result.CreditID.String()).
		Str("amount", result.RefundAmount.StringFixed(2)).
		Str("status", string(result.CreditStatus)).
		Msg("referral credit refunded")

	return result, nil
}

// AutoExpireCredits expires every overdue active credit and logs one
// "expired" movement per credit. Running it again right away expires nothing.
func (s *Service) AutoExpireCredits(ctx context.Context) (*ExpireResult, error) {
	now := s.now()
	result := &ExpireResult{ExpiredAmount: decimal.Zero}

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		expired, err := s.repo.ExpireDue(ctx, tx, now)
		if err != nil {
			return err
		}

		ledger := make([]Transaction, 0, len(expired))
		for _, c := range expired {
			ledger = append(ledger, Transaction{
				ID:              uuid.New(),
				UserID:          c.UserID,
				CreditID:        c.ID,
				TransactionType: TxExpired,
				Amount:          c.RemainingAmount,
				Description:     fmt.Sprintf("Credit expired on %s", c.ExpiryDate.Format("2006-01-02")),
				CreatedAt:       now,
			})
			result.ExpiredAmount = result.ExpiredAmount.Add(c.RemainingAmount)
		}
		result.ExpiredCount = len(expired)

		return s.repo.InsertTransactions(ctx, tx, ledger)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCreditsExpired(result.ExpiredCount)
	if result.ExpiredCount > 0 {
		log.Info().
			Int("count", result.ExpiredCount).
			Str("amount", result.ExpiredAmount.StringFixed(2)).
			Msg("referral credits expired")
	}

	return result, nil
}

// SendExpirationWarnings builds one notification per user holding credits
// that expire within days. It only reads; delivery belongs to the caller.
func (s *Service) SendExpirationWarnings(ctx context.Context, days int) (*WarningsResult, error) {
	if days <= 0 {
		days = s.policy.WarningDays
	}

	now := s.now()
	rows, err := s.repo.ListExpiring(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}

	notifications := groupWarnings(rows, now)
	return &WarningsResult{WarningsSent: len(notifications), Notifications: notifications}, nil
}

// GetBalanceSummary aggregates every credit of the user
func (s *Service) GetBalanceSummary(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error) {
	credits, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := summarize(credits, s.now(), s.policy.ExpiringSoonDays)
	return &summary, nil
}

// ListTransactions returns paginated ledger history for a user
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
