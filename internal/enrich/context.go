// Package enrich builds the contextual fields attached to every record from
// the host window's ambient state. Everything here is a pure function of its
// input; malformed values degrade to "unknown" or null instead of failing.
package enrich

import (
	"net/url"

	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// UTM query parameter names.
const (
	paramUTMSource   = "utm_source"
	paramUTMMedium   = "utm_medium"
	paramUTMCampaign = "utm_campaign"
	paramUTMTerm     = "utm_term"
	paramUTMContent  = "utm_content"
)

// Build returns the enrichment fields for the given snapshot.
func Build(s dom.Snapshot) models.Context {
	ua := ParseUserAgent(s.UserAgent)

	c := models.Context{
		PageURL:        s.URL,
		PageTitle:      s.Title,
		PagePath:       "/",
		UserAgent:      s.UserAgent,
		DeviceType:     ua.DeviceType,
		BrowserName:    ua.BrowserName,
		BrowserVersion: ua.BrowserVersion,
		OSName:         ua.OSName,
		OSVersion:      ua.OSVersion,
		ScreenWidth:    s.Screen.Width,
		ScreenHeight:   s.Screen.Height,
		ViewportWidth:  s.Viewport.Width,
		ViewportHeight: s.Viewport.Height,
		Timezone:       s.Timezone,
		Language:       s.Language,
	}

	loc := s.Location()
	var host string
	if loc != nil {
		host = loc.Hostname()
		if loc.Path != "" {
			c.PagePath = loc.Path
		}
		query := loc.Query()
		c.UTMSource = param(query, paramUTMSource)
		c.UTMMedium = param(query, paramUTMMedium)
		c.UTMCampaign = param(query, paramUTMCampaign)
		c.UTMTerm = param(query, paramUTMTerm)
		c.UTMContent = param(query, paramUTMContent)
	}

	ref := ClassifyReferrer(s.Referrer, host)
	c.TrafficSource = ref.Source
	c.ReferrerDomain = ref.Domain
	if s.Referrer != "" {
		r := s.Referrer
		c.ReferrerURL = &r
	}
	return c
}

// param returns the first value of key, or nil when absent or empty.
func param(q url.Values, key string) *string {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	return &v
}
