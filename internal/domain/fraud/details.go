package fraud

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DetailKind tags each entry of CheckDetails
type DetailKind string

const (
	KindIPVelocity        DetailKind = "ip_velocity"
	KindDeviceFingerprint DetailKind = "device_fingerprint"
	KindConversionRate    DetailKind = "conversion_rate"
	KindAccountAge        DetailKind = "account_age"
	KindUserBlock         DetailKind = "user_block"
)

// Detail is one sub-check outcome stored in check_details
type Detail interface {
	DetailKind() DetailKind
	Score() int
}

type IPVelocityResult struct {
	Kind            DetailKind `json:"check_type"`
	IPAddress       string     `json:"ip_address"`
	WindowHours     int        `json:"window_hours"`
	ConversionCount int        `json:"conversion_count"`
	IsSuspicious    bool       `json:"is_suspicious"`
	RiskScore       int        `json:"risk_score"`
	RiskLevel       RiskLevel  `json:"risk_level"`
}

func (r IPVelocityResult) DetailKind() DetailKind { return KindIPVelocity }
func (r IPVelocityResult) Score() int             { return r.RiskScore }

type DeviceFingerprintResult struct {
	Kind            DetailKind `json:"check_type"`
	UserAgent       string     `json:"user_agent"`
	DeviceType      string     `json:"device_type"`
	WindowDays      int        `json:"window_days"`
	ConversionCount int        `json:"conversion_count"`
	IsSuspicious    bool       `json:"is_suspicious"`
	RiskScore       int        `json:"risk_score"`
	RiskLevel       RiskLevel  `json:"risk_level"`
}

func (r DeviceFingerprintResult) DetailKind() DetailKind { return KindDeviceFingerprint }
func (r DeviceFingerprintResult) Score() int             { return r.RiskScore }

type ConversionRateResult struct {
	Kind           DetailKind `json:"check_type"`
	ReferralLinkID uuid.UUID  `json:"referral_link_id"`
	Clicks         int        `json:"clicks"`
	Conversions    int        `json:"conversions"`
	ConversionRate float64    `json:"conversion_rate"`
	IsSuspicious   bool       `json:"is_suspicious"`
	RiskScore      int        `json:"risk_score"`
	RiskLevel      RiskLevel  `json:"risk_level"`
}

func (r ConversionRateResult) DetailKind() DetailKind { return KindConversionRate }
func (r ConversionRateResult) Score() int             { return r.RiskScore }

type AccountAgeResult struct {
	Kind           DetailKind `json:"check_type"`
	UserID         uuid.UUID  `json:"user_id"`
	AccountAgeDays int        `json:"account_age_days"`
	MinimumDays    int        `json:"minimum_days"`
	MeetsMinimum   bool       `json:"meets_minimum"`
	RiskScore      int        `json:"risk_score"`
	RiskLevel      RiskLevel  `json:"risk_level"`
}

func (r AccountAgeResult) DetailKind() DetailKind { return KindAccountAge }
func (r AccountAgeResult) Score() int             { return r.RiskScore }

// UserBlockDetail documents a manual block
type UserBlockDetail struct {
	Kind             DetailKind      `json:"check_type"`
	Reason           string          `json:"reason"`
	BlockedBy        uuid.UUID       `json:"blocked_by"`
	LinksDeactivated int             `json:"links_deactivated"`
	CreditsCancelled int             `json:"credits_cancelled"`
	AmountForfeited  decimal.Decimal `json:"amount_forfeited"`
	RiskScore        int             `json:"risk_score"`
	RiskLevel        RiskLevel       `json:"risk_level"`
}

func (d UserBlockDetail) DetailKind() DetailKind { return KindUserBlock }
func (d UserBlockDetail) Score() int             { return d.RiskScore }

// CheckDetails is the per-check breakdown persisted as a JSON array.
// Entries are decoded back into their concrete types by check_type.
type CheckDetails []Detail

func (d CheckDetails) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Detail(d))
}

func (d *CheckDetails) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(CheckDetails, 0, len(raw))
	for _, item := range raw {
		var tag struct {
			Kind DetailKind `json:"check_type"`
		}
		if err := json.Unmarshal(item, &tag); err != nil {
			return err
		}

		var detail Detail
		var err error
		switch tag.Kind {
		case KindIPVelocity:
			detail, err = decodeDetail[IPVelocityResult](item)
		case KindDeviceFingerprint:
			detail, err = decodeDetail[DeviceFingerprintResult](item)
		case KindConversionRate:
			detail, err = decodeDetail[ConversionRateResult](item)
		case KindAccountAge:
			detail, err = decodeDetail[AccountAgeResult](item)
		case KindUserBlock:
			detail, err = decodeDetail[UserBlockDetail](item)
		default:
			return fmt.Errorf("unknown fraud check detail type %q", tag.Kind)
		}
		if err != nil {
			return err
		}
		out = append(out, detail)
	}

	*d = out
	return nil
}

func decodeDetail[T Detail](data []byte) (Detail, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Value implements driver.Valuer for the JSONB column
func (d CheckDetails) Value() (driver.Value, error) {
	return d.MarshalJSON()
}

// Scan implements sql.Scanner for the JSONB column
func (d *CheckDetails) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = CheckDetails{}
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported check_details type %T", src)
	}
}
