package referralcredit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// allocation is the amount taken from one credit
type allocation struct {
	credit Credit
	amount decimal.Decimal
}

// allocate walks credits in the given order (oldest expiry first) and
// consumes up to min(amount, maxPerTx, total remaining).
func allocate(credits []Credit, amount, maxPerTx decimal.Decimal) []allocation {
	total := decimal.Zero
	for _, c := range credits {
		if c.RemainingAmount.IsPositive() {
			total = total.Add(c.RemainingAmount)
		}
	}

	left := decimal.Min(amount, maxPerTx, total)
	if !left.IsPositive() {
		return nil
	}

	out := make([]allocation, 0, len(credits))
	for _, c := range credits {
		if !left.IsPositive() {
			break
		}
		if !c.RemainingAmount.IsPositive() {
			continue
		}
		take := decimal.Min(c.RemainingAmount, left)
		out = append(out, allocation{credit: c, amount: take})
		left = left.Sub(take)
	}
	return out
}

// statusAfterUse is the status of a credit once usedAmount has been consumed
func statusAfterUse(c Credit, usedAmount decimal.Decimal) CreditStatus {
	if c.CreditAmount.Sub(usedAmount).LessThanOrEqual(decimal.Zero) {
		return StatusUsed
	}
	return StatusActive
}

// statusAfterRefund restores a credit after part of its usage is given back.
// Cancelled credits stay forfeited and flagged expiries stay expired.
func statusAfterRefund(c Credit) CreditStatus {
	switch {
	case c.Status == StatusCancelled:
		return StatusCancelled
	case c.IsExpired:
		return StatusExpired
	default:
		return StatusActive
	}
}

func sumAmounts(credits []Credit) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.RemainingAmount)
	}
	return total
}

// summarize aggregates every credit of a user at now
func summarize(credits []Credit, now time.Time, expiringSoonDays int) BalanceSummary {
	soon := now.AddDate(0, 0, expiringSoonDays)
	s := BalanceSummary{
		TotalEarned:    decimal.Zero,
		TotalUsed:      decimal.Zero,
		TotalAvailable: decimal.Zero,
		TotalExpired:   decimal.Zero,
		TotalCancelled: decimal.Zero,
		ExpiringSoon:   decimal.Zero,
		ByType:         make(map[string]TypeBreakdown),
	}

	for _, c := range credits {
		s.TotalEarned = s.TotalEarned.Add(c.CreditAmount)
		s.TotalUsed = s.TotalUsed.Add(c.UsedAmount)

		bt, ok := s.ByType[c.CreditType]
		if !ok {
			bt = TypeBreakdown{TotalEarned: decimal.Zero, TotalUsed: decimal.Zero, TotalAvailable: decimal.Zero}
		}
		bt.Count++
		bt.TotalEarned = bt.TotalEarned.Add(c.CreditAmount)
		bt.TotalUsed = bt.TotalUsed.Add(c.UsedAmount)

		switch {
		case c.IsAvailable(now):
			s.TotalAvailable = s.TotalAvailable.Add(c.RemainingAmount)
			s.ActiveCredits++
			bt.TotalAvailable = bt.TotalAvailable.Add(c.RemainingAmount)
			if !c.ExpiryDate.After(soon) {
				s.ExpiringSoon = s.ExpiringSoon.Add(c.RemainingAmount)
			}
		case c.Status == StatusExpired || c.IsExpired || (c.Status == StatusActive && c.ExpiryDate.Before(now)):
			s.TotalExpired = s.TotalExpired.Add(c.RemainingAmount)
		case c.Status == StatusCancelled:
			s.TotalCancelled = s.TotalCancelled.Add(c.RemainingAmount)
		}

		s.ByType[c.CreditType] = bt
	}

	return s
}

// expiringRow is a credit about to expire joined with its owner's contact data
type expiringRow struct {
	CreditID        uuid.UUID       `db:"credit_id"`
	UserID          uuid.UUID       `db:"user_id"`
	CreditType      string          `db:"credit_type"`
	RemainingAmount decimal.Decimal `db:"remaining_amount"`
	ExpiryDate      time.Time       `db:"expiry_date"`
	Email           string          `db:"email"`
	Phone           *string         `db:"phone"`
	FullName        *string         `db:"full_name"`
}

// groupWarnings folds rows ordered by user into one notification per user,
// keeping first-seen user order.
func groupWarnings(rows []expiringRow, now time.Time) []Notification {
	index := make(map[uuid.UUID]int)
	out := make([]Notification, 0)

	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			n := Notification{
				UserID:         row.UserID,
				Email:          row.Email,
				TotalExpiring:  decimal.Zero,
				EarliestExpiry: row.ExpiryDate,
			}
			if row.Phone != nil {
				n.Phone = *row.Phone
			}
			if row.FullName != nil {
				n.FullName = *row.FullName
			}
			out = append(out, n)
			i = len(out) - 1
			index[row.UserID] = i
		}

		n := &out[i]
		n.TotalExpiring = n.TotalExpiring.Add(row.RemainingAmount)
		if row.ExpiryDate.Before(n.EarliestExpiry) {
			n.EarliestExpiry = row.ExpiryDate
		}
		n.Credits = append(n.Credits, ExpiringCredit{
			CreditID:        row.CreditID,
			CreditType:      row.CreditType,
			RemainingAmount: row.RemainingAmount,
			ExpiryDate:      row.ExpiryDate,
			DaysUntilExpiry: daysUntil(now, row.ExpiryDate),
		})
	}

	return out
}

func daysUntil(now, t time.Time) int {
	if !t.After(now) {
		return 0
	}
	return int(t.Sub(now) / (24 * time.Hour))
}
