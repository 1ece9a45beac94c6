package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/entities/session"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
	uaAndroidPhone  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	uaAndroidTablet = "Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	uaSamsung       = "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/24.0 Chrome/117.0.0.0 Mobile Safari/537.36"
	uaSafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	uaWindowsPhone  = "Mozilla/5.0 (Mobile; Windows Phone 8.1; Android 4.0; ARM; Trident/7.0; Touch; rv:11.0; IEMobile/11.0; NOKIA; Lumia 635) like iPhone OS 7_0_3 Mac OS X AppleWebKit/537 (KHTML, like Gecko) Mobile Safari/537"
	uaOperaMac      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 OPR/109.0.0.0"
)

func TestResolveClassifiesUserAgents(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{"chrome on windows", uaChromeWindows, session.DeviceDesktop, "chrome", "windows"},
		{"edge before chrome", uaEdgeWindows, session.DeviceDesktop, "edge", "windows"},
		{"safari on iphone", uaSafariIPhone, session.DeviceMobile, "safari", "ios"},
		{"ipad is a tablet", uaSafariIPad, session.DeviceTablet, "safari", "ios"},
		{"firefox on linux", uaFirefoxLinux, session.DeviceDesktop, "firefox", "linux"},
		{"android phone", uaAndroidPhone, session.DeviceMobile, "chrome", "android"},
		{"android tablet without Mobile", uaAndroidTablet, session.DeviceTablet, "chrome", "android"},
		{"samsung before chrome", uaSamsung, session.DeviceMobile, "samsung", "android"},
		{"safari on mac", uaSafariMac, session.DeviceDesktop, "safari", "macos"},
		{"opera before chrome", uaOperaMac, session.DeviceDesktop, "opera", "macos"},
		{"windows phone before windows", uaWindowsPhone, session.DeviceMobile, "ie", "windowsphone"},
		{"empty agent", "", session.DeviceDesktop, session.Unknown, session.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Resolve(Environment{UserAgent: tt.ua})
			assert.Equal(t, tt.device, ctx.DeviceType)
			assert.Equal(t, tt.browser, ctx.Browser)
			assert.Equal(t, tt.os, ctx.OS)
		})
	}
}

func TestReferrerSource(t *testing.T) {
	tests := []struct {
		referrer string
		want     string
	}{
		{"", session.ReferrerDirect},
		{"not a url", session.ReferrerDirect},
		{"https://www.google.com/search?q=tractstack", session.ReferrerSearch},
		{"https://www.google.co.uk/", session.ReferrerSearch},
		{"https://duckduckgo.com/", session.ReferrerSearch},
		{"https://t.co/abc", session.ReferrerSocial},
		{"https://m.facebook.com/", session.ReferrerSocial},
		{"https://news.ycombinator.com/item?id=1", session.ReferrerOther},
		{"https://www.tractstack.com/pricing", session.ReferrerInternal},
	}

	for _, tt := range tests {
		t.Run(tt.referrer, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferrerSource(tt.referrer, "tractstack.com"))
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	env := Environment{UserAgent: uaSamsung, Referrer: "https://x.com/post", DoNotTrack: true}
	first := Resolve(env)
	second := Resolve(env)
	assert.Equal(t, first, second)
	assert.True(t, first.DoNotTrack)
	assert.Equal(t, session.ReferrerSocial, first.ReferrerSource)
}
