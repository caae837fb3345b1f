package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/crowdlend/crowdlend-api/internal/domain/user"
	"github.com/crowdlend/crowdlend-api/internal/pkg/database"
	"github.com/crowdlend/crowdlend-api/internal/pkg/metrics"
)

// Service scores referral activity and manages the review queue
type Service struct {
	db    *sqlx.DB
	repo  *Repository
	users user.Repository
	now   func() time.Time
}

// NewService creates fraud service
func NewService(db *sqlx.DB, users user.Repository) *Service {
	return &Service{
		db:    db,
		repo:  NewRepository(db),
		users: users,
		now:   time.Now,
	}
}

// CheckIPVelocity scores how many converted signups came from one IP
func (s *Service) CheckIPVelocity(ctx context.Context, ip string, hours int) (*IPVelocityResult, error) {
	if hours <= 0 {
		hours = DefaultIPWindowHours
	}
	since := s.now().Add(-time.Duration(hours) * time.Hour)

	count, err := s.repo.CountConvertedByIP(ctx, ip, since)
	if err != nil {
		return nil, err
	}
	res := scoreIPVelocity(ip, hours, count)
	return &res, nil
}

// CheckDeviceFingerprint scores reuse of one browser/device pair over a week
func (s *Service) CheckDeviceFingerprint(ctx context.Context, userAgent, deviceType string) (*DeviceFingerprintResult, error) {
	since := s.now().AddDate(0, 0, -deviceWindowDays)

	count, err := s.repo.CountConvertedByDevice(ctx, userAgent, deviceType, since)
	if err != nil {
		return nil, err
	}
	res := scoreDeviceFingerprint(userAgent, deviceType, count)
	return &res, nil
}

// CheckConversionRate scores an unusually high click-to-signup ratio
func (s *Service) CheckConversionRate(ctx context.Context, linkID uuid.UUID) (*ConversionRateResult, error) {
	clicks, conversions, err := s.repo.LinkStats(ctx, linkID)
	if err != nil {
		return nil, err
	}
	res := scoreConversionRate(linkID, clicks, conversions)
	return &res, nil
}

// CheckAccountAge scores accounts younger than MinAccountAgeDays
func (s *Service) CheckAccountAge(ctx context.Context, userID uuid.UUID) (*AccountAgeResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}
	res := scoreAccountAge(userID, u.AccountAgeDays(s.now()))
	return &res, nil
}

// ComprehensiveCheck runs every check whose inputs are present, averages
// their scores and persists the outcome. With no signals the score is 0.
func (s *Service) ComprehensiveCheck(ctx context.Context, p Params) (*Check, error) {
	if err := s.verifyParticipant(ctx, p); err != nil {
		return nil, err
	}

	details := make(CheckDetails, 0, 4)

	if p.IPAddress != "" {
		res, err := s.CheckIPVelocity(ctx, p.IPAddress, DefaultIPWindowHours)
		if err != nil {
			return nil, err
		}
		details = append(details, *res)
	}
	if p.UserAgent != "" && p.DeviceType != "" {
		res, err := s.CheckDeviceFingerprint(ctx, p.UserAgent, p.DeviceType)
		if err != nil {
			return nil, err
		}
		details = append(details, *res)
	}
	if p.ReferralLinkID != nil {
		res, err := s.CheckConversionRate(ctx, *p.ReferralLinkID)
		if err != nil {
			return nil, err
		}
		details = append(details, *res)
	}
	if p.UserID != nil {
		res, err := s.CheckAccountAge(ctx, *p.UserID)
		if err != nil {
			return nil, err
		}
		details = append(details, *res)
	}

	check := &Check{
		ID:             uuid.New(),
		CheckType:      CheckComprehensive,
		UserID:         p.UserID,
		ReferralLinkID: p.ReferralLinkID,
		ConversionID:   p.ConversionID,
		Details:        details,
		CreatedAt:      s.now(),
	}
	decide(check)

	if err := s.repo.CreateCheck(ctx, check); err != nil {
		log.Error().Err(err).Str("check_id", check.ID.String()).Msg("failed to store fraud check")
		return nil, err
	}

	metrics.RecordFraudCheck(string(check.CheckType), string(check.RiskLevel))
	if check.IsFlagged {
		log.Warn().
			Str("check_id", check.ID.String()).
			Int("risk_score", check.RiskScore).
			Str("risk_level", string(check.RiskLevel)).
			Bool("blocked", check.IsBlocked).
			Int("checks_performed", len(details)).
			Msg("referral flagged by fraud check")
	}

	return check, nil
}

// verifyParticipant keeps checks about a user attached only to referrals that user is part of
func (s *Service) verifyParticipant(ctx context.Context, p Params) error {
	if p.UserID == nil {
		return nil
	}
	if p.ReferralLinkID != nil {
		ok, err := s.repo.LinkInvolves(ctx, *p.ReferralLinkID, *p.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotParticipant
		}
	}
	if p.ConversionID != nil {
		ok, err := s.repo.ConversionInvolves(ctx, *p.ConversionID, *p.UserID, p.ReferralLinkID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotParticipant
		}
	}
	return nil
}

// GetFlaggedConversions returns the manual review queue
func (s *Service) GetFlaggedConversions(ctx context.Context, limit int) ([]FlaggedConversion, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListFlagged(ctx, limit)
}

// ResolveFraudCheck records a reviewer verdict. A check is resolved once;
// later attempts return ErrAlreadyResolved.
func (s *Service) ResolveFraudCheck(ctx context.Context, checkID uuid.UUID, resolution Resolution, reviewerID uuid.UUID, notes string) (*Check, error) {
	if resolution != ResolutionApproved && resolution != ResolutionRejected {
		return nil, ErrInvalidResolution
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	check, err := s.repo.Resolve(ctx, checkID, resolution, reviewerID, notesPtr, s.now())
	if err != nil {
		return nil, err
	}
	if check == nil {
		existing, err := s.repo.GetCheck(ctx, checkID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrFraudCheckNotFound
		}
		return nil, ErrAlreadyResolved
	}

	log.Info().
		Str("check_id", checkID.String()).
		Str("resolution", string(resolution)).
		Str("reviewer_id", reviewerID.String()).
		Msg("fraud check resolved")

	return check, nil
}

// BlockUser deactivates the user's referral links, cancels their active
// credits and records a critical manual_review check, all in one transaction.
func (s *Service) BlockUser(ctx context.Context, userID uuid.UUID, reason string, blockedBy uuid.UUID) (*BlockResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	now := s.now()
	result := &BlockResult{UserID: userID}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		credits, err := s.repo.LockActiveCredits(ctx, tx, userID)
		if err != nil {
			return err
		}
		forfeited := decimal.Zero
		for _, c := range credits {
			forfeited = forfeited.Add(c.Remaining)
		}

		links, err := s.repo.DeactivateLinks(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		cancelled, err := s.repo.CancelCredits(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		notes := reason
		check := &Check{
			ID:        uuid.New(),
			CheckType: CheckManualReview,
			UserID:    &userID,
			RiskScore: blockRiskScore,
			RiskLevel: RiskCritical,
			IsFlagged: true,
			IsBlocked: true,
			Details: CheckDetails{UserBlockDetail{
				Kind:             KindUserBlock,
				Reason:           reason,
				BlockedBy:        blockedBy,
				LinksDeactivated: links,
				CreditsCancelled: cancelled,
				AmountForfeited:  forfeited,
				RiskScore:        blockRiskScore,
				RiskLevel:        RiskCritical,
			}},
			Notes:     &notes,
			CreatedAt: now,
		}
		if err := s.repo.CreateCheckTx(ctx, tx, check); err != nil {
			return err
		}

		result.CheckID = check.ID
		result.LinksDeactivated = links
		result.CreditsCancelled = cancelled
		result.AmountForfeited = forfeited.StringFixed(2)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("user block rolled back")
		return nil, err
	}

	metrics.RecordUserBlocked()
	metrics.RecordFraudCheck(string(CheckManualReview), string(RiskCritical))
	log.Warn().
		Str("user_id", userID.String()).
		Str("blocked_by", blockedBy.String()).
		Int("links_deactivated", result.LinksDeactivated).
		Int("credits_cancelled", result.CreditsCancelled).
		Str("amount_forfeited", result.AmountForfeited).
		Msg("user blocked from referral program")

	return result, nil
}
