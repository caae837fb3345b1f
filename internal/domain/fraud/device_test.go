package fraud

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceTypeFromUserAgent(t *testing.T) {
	cases := map[string]string{
		"": "",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) Mobile/15E148":         "mobile",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/124.0 Mobile Safari/537.36":    "mobile",
		"Mozilla/5.0 (Linux; Android 13; SM-X710) Chrome/124.0 Safari/537.36":           "tablet",
		"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) Safari/604.1":                    "tablet",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0 Safari/537.36":          "desktop",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) Version/17.4 Safari/605.1.15":     "desktop",
	}
	for ua, want := range cases {
		assert.Equal(t, want, DeviceTypeFromUserAgent(ua), ua)
	}
}

func TestTruncateUserAgent(t *testing.T) {
	long := strings.Repeat("a", maxUserAgentLength+40)
	assert.Len(t, truncateUserAgent(long), maxUserAgentLength)
	assert.Equal(t, "curl/8.0", truncateUserAgent("curl/8.0"))
}
