package fraud

import "strings"

const maxUserAgentLength = 512

// DeviceTypeFromUserAgent classifies a user agent the way referral clicks are
// recorded: tablet, mobile or desktop. An empty user agent has no device type.
func DeviceTypeFromUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func truncateUserAgent(userAgent string) string {
	if len(userAgent) > maxUserAgentLength {
		return userAgent[:maxUserAgentLength]
	}
	return userAgent
}
