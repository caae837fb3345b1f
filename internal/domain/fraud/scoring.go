package fraud

import (
	"math"

	"github.com/google/uuid"
)

const (
	ipVelocityThreshold   = 3
	DefaultIPWindowHours  = 24
	deviceReuseThreshold  = 2
	deviceWindowDays      = 7
	conversionRateLimit   = 60.0
	MinAccountAgeDays     = 30
	blockRiskScore        = 100
	flagThreshold         = 60
	manualReviewThreshold = 80
	blockThreshold        = 95
)

// RiskLevelFor maps a score to its level: critical >= 95, high >= 80, medium >= 60
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= blockThreshold:
		return RiskCritical
	case score >= manualReviewThreshold:
		return RiskHigh
	case score >= flagThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

func scoreIPVelocity(ip string, hours, count int) IPVelocityResult {
	res := IPVelocityResult{
		Kind:            KindIPVelocity,
		IPAddress:       ip,
		WindowHours:     hours,
		ConversionCount: count,
		IsSuspicious:    count > ipVelocityThreshold,
	}
	if res.IsSuspicious {
		res.RiskScore = min(100, 50+10*(count-ipVelocityThreshold))
	}
	res.RiskLevel = RiskLevelFor(res.RiskScore)
	return res
}

func scoreDeviceFingerprint(userAgent, deviceType string, count int) DeviceFingerprintResult {
	res := DeviceFingerprintResult{
		Kind:            KindDeviceFingerprint,
		UserAgent:       userAgent,
		DeviceType:      deviceType,
		WindowDays:      deviceWindowDays,
		ConversionCount: count,
		IsSuspicious:    count > deviceReuseThreshold,
	}
	if res.IsSuspicious {
		res.RiskScore = min(100, 40+15*(count-deviceReuseThreshold))
	}
	res.RiskLevel = RiskLevelFor(res.RiskScore)
	return res
}

func scoreConversionRate(linkID uuid.UUID, clicks, conversions int) ConversionRateResult {
	res := ConversionRateResult{
		Kind:           KindConversionRate,
		ReferralLinkID: linkID,
		Clicks:         clicks,
		Conversions:    conversions,
	}
	if clicks > 0 {
		res.ConversionRate = float64(conversions) / float64(clicks) * 100
	}
	res.IsSuspicious = res.ConversionRate > conversionRateLimit
	if res.IsSuspicious {
		res.RiskScore = min(100, int(math.Round(50+(res.ConversionRate-conversionRateLimit))))
	}
	res.RiskLevel = RiskLevelFor(res.RiskScore)
	return res
}

func scoreAccountAge(userID uuid.UUID, ageDays int) AccountAgeResult {
	res := AccountAgeResult{
		Kind:           KindAccountAge,
		UserID:         userID,
		AccountAgeDays: ageDays,
		MinimumDays:    MinAccountAgeDays,
		MeetsMinimum:   ageDays >= MinAccountAgeDays,
	}
	if !res.MeetsMinimum {
		res.RiskScore = max(0, 70-2*ageDays)
	}
	res.RiskLevel = RiskLevelFor(res.RiskScore)
	return res
}

// averageScore is the rounded mean of the sub-check scores, 0 when none ran
func averageScore(details CheckDetails) int {
	if len(details) == 0 {
		return 0
	}
	sum := 0
	for _, d := range details {
		sum += d.Score()
	}
	return int(math.Round(float64(sum) / float64(len(details))))
}

// decide fills the verdict fields of c from its sub-checks
func decide(c *Check) {
	c.RiskScore = averageScore(c.Details)
	c.RiskLevel = RiskLevelFor(c.RiskScore)
	c.IsFlagged = c.RiskScore >= flagThreshold
	c.RequiresManualReview = c.RiskScore >= manualReviewThreshold
	c.IsBlocked = c.RiskScore >= blockThreshold
}
