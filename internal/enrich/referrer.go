package enrich

import (
	"net/url"
	"strings"
)

// Traffic sources a referrer classifies into.
const (
	SourceInternal = "internal"
	SourceOrganic  = "organic"
	SourceSocial   = "social"
	SourceReferral = "referral"
	SourceDirect   = "direct"
	SourceUnknown  = "unknown"
)

var searchEngines = []string{
	"google.com", "bing.com", "yahoo.com", "duckduckgo.com", "baidu.com", "yandex.com",
}

var socialPlatforms = []string{
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com",
	"youtube.com", "tiktok.com", "pinterest.com", "reddit.com",
}

// Referrer is the outcome of classifying a referrer URL.
type Referrer struct {
	Source string
	Domain *string // nil for direct or unparsable referrers
}

// ClassifyReferrer classifies referrer relative to the current page host.
// The checks form a priority chain: internal, organic, social, referral.
// An empty referrer is direct; one without a parsable hostname is unknown.
func ClassifyReferrer(referrer, pageHost string) Referrer {
	if strings.TrimSpace(referrer) == "" {
		return Referrer{Source: SourceDirect}
	}

	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return Referrer{Source: SourceUnknown}
	}
	host := strings.ToLower(u.Hostname())
	ref := Referrer{Domain: &host}

	switch {
	case pageHost != "" && host == strings.ToLower(pageHost):
		ref.Source = SourceInternal
	case containsAny(host, searchEngines):
		ref.Source = SourceOrganic
	case containsAny(host, socialPlatforms):
		ref.Source = SourceSocial
	default:
		ref.Source = SourceReferral
	}
	return ref
}

func containsAny(host string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(host, f) {
			return true
		}
	}
	return false
}
