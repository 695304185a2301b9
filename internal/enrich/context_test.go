package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiora/visiora-agent/pkg/dom"
)

func TestBuild(t *testing.T) {
	snap := dom.Snapshot{
		URL:       "https://shop.example.com/products/42?utm_source=newsletter&utm_campaign=spring",
		Title:     "Product 42",
		Referrer:  "https://www.bing.com/search?q=widgets",
		UserAgent: uaChromeWindows,
		Language:  "en-US",
		Timezone:  "Europe/Berlin",
		Screen:    dom.Size{Width: 1920, Height: 1080},
		Viewport:  dom.Size{Width: 1280, Height: 720},
	}

	c := Build(snap)

	assert.Equal(t, snap.URL, c.PageURL)
	assert.Equal(t, "Product 42", c.PageTitle)
	assert.Equal(t, "/products/42", c.PagePath)
	assert.Equal(t, SourceOrganic, c.TrafficSource)
	require.NotNil(t, c.ReferrerURL)
	assert.Equal(t, snap.Referrer, *c.ReferrerURL)
	require.NotNil(t, c.ReferrerDomain)
	assert.Equal(t, "www.bing.com", *c.ReferrerDomain)

	require.NotNil(t, c.UTMSource)
	assert.Equal(t, "newsletter", *c.UTMSource)
	require.NotNil(t, c.UTMCampaign)
	assert.Equal(t, "spring", *c.UTMCampaign)
	assert.Nil(t, c.UTMMedium)
	assert.Nil(t, c.UTMTerm)
	assert.Nil(t, c.UTMContent)

	assert.Equal(t, DeviceDesktop, c.DeviceType)
	assert.Equal(t, 1920, c.ScreenWidth)
	assert.Equal(t, 720, c.ViewportHeight)
	assert.Equal(t, "Europe/Berlin", c.Timezone)
	assert.Equal(t, "en-US", c.Language)
}

func TestBuild_DegradesOnMalformedInput(t *testing.T) {
	c := Build(dom.Snapshot{URL: "://bad", Referrer: "::::"})

	assert.Equal(t, "/", c.PagePath)
	assert.Equal(t, SourceUnknown, c.TrafficSource)
	assert.Nil(t, c.ReferrerDomain)
	assert.Nil(t, c.UTMSource)
	assert.Equal(t, unknown, c.DeviceType)
	assert.Equal(t, unknown, c.BrowserName)
}

func TestBuild_Direct(t *testing.T) {
	c := Build(dom.Snapshot{URL: "https://example.com"})
	assert.Equal(t, SourceDirect, c.TrafficSource)
	assert.Nil(t, c.ReferrerURL)
	assert.Equal(t, "/", c.PagePath)
}
