package enrich

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "unknown"

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// UserAgent holds the fields sniffed from a User-Agent header.
type UserAgent struct {
	DeviceType     string
	BrowserName    string
	BrowserVersion string
	OSName         string
	OSVersion      string
}

// ParseUserAgent sniffs device, browser and OS from raw. Any field that
// cannot be determined is "unknown".
func ParseUserAgent(raw string) UserAgent {
	if strings.TrimSpace(raw) == "" {
		return UserAgent{
			DeviceType:     unknown,
			BrowserName:    unknown,
			BrowserVersion: unknown,
			OSName:         unknown,
			OSVersion:      unknown,
		}
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()
	osInfo := ua.OSInfo()

	return UserAgent{
		DeviceType:     deviceType(ua, raw),
		BrowserName:    orUnknown(name),
		BrowserVersion: orUnknown(version),
		OSName:         orUnknown(osInfo.Name),
		OSVersion:      orUnknown(osInfo.Version),
	}
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case ua.Bot():
		return DeviceBot
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return DeviceTablet
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
