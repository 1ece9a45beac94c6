// Package device derives the static environment facts of a browsing session
// (device class, browser and OS family, referrer source) from the host's
// identification strings.
package device

import (
	"net/url"
	"strings"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/entities/session"
)

// Environment is what the host page exposes about itself.
type Environment struct {
	UserAgent  string
	Referrer   string
	Host       string // the site's own host, used to spot internal referrers
	DoNotTrack bool
}

type signature struct {
	markers []string
	family  string
}

// Order matters: vendor markers come before the generic markers they also contain.
var browserSignatures = []signature{
	{[]string{"Edg/", "EdgA/", "EdgiOS/", "Edge/"}, "edge"},
	{[]string{"OPR/", "Opera"}, "opera"},
	{[]string{"SamsungBrowser"}, "samsung"},
	{[]string{"Firefox/", "FxiOS/"}, "firefox"},
	{[]string{"IEMobile/", "Trident/", "MSIE "}, "ie"},
	{[]string{"Chrome/", "CriOS/", "Chromium/"}, "chrome"},
	{[]string{"Safari/"}, "safari"},
}

var osSignatures = []signature{
	// Windows Phone agents also claim Android and iPhone.
	{[]string{"Windows Phone"}, "windowsphone"},
	{[]string{"Windows"}, "windows"},
	{[]string{"iPhone", "iPad", "iPod"}, "ios"},
	{[]string{"Mac OS X", "Macintosh"}, "macos"},
	{[]string{"Android"}, "android"},
	{[]string{"CrOS"}, "chromeos"},
	{[]string{"Linux"}, "linux"},
}

var (
	tabletMarkers = []string{"iPad", "Tablet", "PlayBook", "Silk", "Kindle"}
	mobileMarkers = []string{"Mobi", "iPhone", "iPod", "Android", "Windows Phone", "BlackBerry", "Opera Mini"}
)

var searchDomains = []string{
	"google.", "bing.com", "duckduckgo.com", "yahoo.", "baidu.com", "yandex.", "ecosia.org", "search.brave.com",
}

var socialDomains = []string{
	"facebook.com", "fb.com", "t.co", "twitter.com", "x.com", "linkedin.com", "lnkd.in",
	"reddit.com", "instagram.com", "youtube.com", "tiktok.com", "pinterest.", "mastodon.", "threads.net",
}

// Resolve classifies env. It has no side effects; calling it twice with the
// same environment yields identical results.
func Resolve(env Environment) session.DeviceContext {
	return session.DeviceContext{
		DeviceType:     DeviceType(env.UserAgent),
		Browser:        match(env.UserAgent, browserSignatures),
		OS:             match(env.UserAgent, osSignatures),
		ReferrerSource: ReferrerSource(env.Referrer, env.Host),
		Referrer:       env.Referrer,
		UserAgent:      env.UserAgent,
		DoNotTrack:     env.DoNotTrack,
	}
}

// DeviceType checks tablet signatures before mobile ones and falls back to desktop.
func DeviceType(userAgent string) string {
	if containsAny(userAgent, tabletMarkers) {
		return session.DeviceTablet
	}
	// Android phones carry "Mobile"; Android tablets do not.
	if strings.Contains(userAgent, "Android") && !strings.Contains(userAgent, "Mobile") {
		return session.DeviceTablet
	}
	if containsAny(userAgent, mobileMarkers) {
		return session.DeviceMobile
	}
	return session.DeviceDesktop
}

// ReferrerSource maps a referring URL onto a fixed set of acquisition sources.
func ReferrerSource(referrer, ownHost string) string {
	if strings.TrimSpace(referrer) == "" {
		return session.ReferrerDirect
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return session.ReferrerDirect
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))

	if ownHost != "" && host == strings.ToLower(strings.TrimPrefix(ownHost, "www.")) {
		return session.ReferrerInternal
	}
	if hostMatches(host, searchDomains) {
		return session.ReferrerSearch
	}
	if hostMatches(host, socialDomains) {
		return session.ReferrerSocial
	}
	return session.ReferrerOther
}

func match(userAgent string, signatures []signature) string {
	for _, sig := range signatures {
		if containsAny(userAgent, sig.markers) {
			return sig.family
		}
	}
	return session.Unknown
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// hostMatches accepts exact hosts, subdomains of them, and "name." prefixes
// that cover every country TLD.
func hostMatches(host string, domains []string) bool {
	for _, domain := range domains {
		if strings.HasSuffix(domain, ".") {
			if strings.HasPrefix(host, domain) || strings.Contains(host, "."+domain) {
				return true
			}
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
