// Package useragent classifies raw User-Agent strings into browser, OS and
// device information for visit analytics.
package useragent

import (
	"regexp"
	"strings"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

// Classification is the result of parsing a User-Agent string.
type Classification struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     models.DeviceType
	IsBot          bool
}

// botSignatures is matched first and in order; the first hit wins and
// short-circuits browser/OS detection. Specific crawlers come before the
// generic substrings.
var botSignatures = []struct {
	token string
	name  string
}{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"slurp", "Yahoo Slurp"},
	{"duckduckbot", "DuckDuckBot"},
	{"baiduspider", "Baiduspider"},
	{"yandexbot", "YandexBot"},
	{"facebookexternalhit", "Facebook Preview"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedInBot"},
	{"whatsapp", "WhatsApp Preview"},
	{"telegrambot", "TelegramBot"},
	{"slackbot", "Slackbot"},
	{"discordbot", "Discordbot"},
	{"applebot", "Applebot"},
	{"ahrefsbot", "AhrefsBot"},
	{"semrushbot", "SemrushBot"},
	{"mj12bot", "MJ12bot"},
	{"dotbot", "DotBot"},
	{"petalbot", "PetalBot"},
	{"bot", "Generic Bot"},
	{"spider", "Generic Bot"},
	{"crawl", "Generic Bot"},
	{"scrape", "Generic Bot"},
	{"curl", "Generic Bot"},
	{"wget", "Generic Bot"},
	{"python-requests", "Generic Bot"},
	{"headless", "Generic Bot"},
}

// browserSignatures is ordered: composite UA strings contain several tokens
// (every Chrome UA also says Safari, Edge also says Chrome), so the most
// specific entries must come first.
var browserSignatures = []struct {
	name    string
	version *regexp.Regexp
}{
	{"Edge", regexp.MustCompile(`(?i)edg(?:e|a|ios)?/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?i)(?:opr|opios|opera)[/ ]([\d.]+)`)},
	{"Samsung Internet", regexp.MustCompile(`(?i)samsungbrowser/([\d.]+)`)},
	{"Firefox", regexp.MustCompile(`(?i)(?:firefox|fxios)/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`(?i)(?:chrome|crios)/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`(?i)version/([\d.]+)`)},
	{"Internet Explorer", regexp.MustCompile(`(?i)(?:msie |rv:)([\d.]+)`)},
}

var browserTokens = map[string]*regexp.Regexp{
	"Edge":              regexp.MustCompile(`(?i)edg(?:e|a|ios)?/`),
	"Opera":             regexp.MustCompile(`(?i)opr/|opios/|opera`),
	"Samsung Internet":  regexp.MustCompile(`(?i)samsungbrowser`),
	"Firefox":           regexp.MustCompile(`(?i)firefox|fxios`),
	"Chrome":            regexp.MustCompile(`(?i)chrome|crios`),
	"Safari":            regexp.MustCompile(`(?i)safari`),
	"Internet Explorer": regexp.MustCompile(`(?i)msie|trident`),
}

// osSignatures is ordered for the same reason: Android UAs contain "Linux",
// iOS UAs contain "Mac OS X".
var osSignatures = []struct {
	name    string
	token   *regexp.Regexp
	version *regexp.Regexp
}{
	{"Windows", regexp.MustCompile(`(?i)windows nt`), regexp.MustCompile(`(?i)windows nt ([\d.]+)`)},
	{"Android", regexp.MustCompile(`(?i)android`), regexp.MustCompile(`(?i)android ([\d.]+)`)},
	{"iOS", regexp.MustCompile(`(?i)iphone os|ipad|ipod`), regexp.MustCompile(`(?i)(?:iphone )?os ([\d_]+)`)},
	{"macOS", regexp.MustCompile(`(?i)mac os x`), regexp.MustCompile(`(?i)mac os x ([\d_.]+)`)},
	{"Chrome OS", regexp.MustCompile(`(?i)cros`), regexp.MustCompile(`(?i)cros \S+ ([\d.]+)`)},
	{"Linux", regexp.MustCompile(`(?i)linux`), nil},
}

// Tablet tokens are checked before mobile tokens: tablet UAs usually match
// the mobile heuristics too, so the order is the tie-break.
var tabletTokens = []string{"ipad", "tablet", "kindle", "silk", "playbook", "sm-t"}

var mobileTokens = []string{"mobi", "iphone", "ipod", "android", "phone", "opera mini", "iemobile"}

var windowsVersions = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
	"5.1":  "XP",
}

// Classify parses a raw User-Agent string. Bot detection runs first and
// short-circuits everything else; bots report a synthetic browser name and
// the default device type.
func Classify(ua string) Classification {
	lower := strings.ToLower(ua)

	for _, sig := range botSignatures {
		if strings.Contains(lower, sig.token) {
			return Classification{
				Browser:    sig.name,
				DeviceType: models.DeviceDesktop,
				IsBot:      true,
			}
		}
	}

	c := Classification{
		Browser:    "Unknown",
		OS:         "Unknown",
		DeviceType: classifyDevice(lower),
	}

	for _, sig := range browserSignatures {
		if !browserTokens[sig.name].MatchString(ua) {
			continue
		}

		c.Browser = sig.name
		if m := sig.version.FindStringSubmatch(ua); m != nil {
			c.BrowserVersion = m[1]
		}
		break
	}

	for _, sig := range osSignatures {
		if !sig.token.MatchString(ua) {
			continue
		}

		c.OS = sig.name
		if sig.version != nil {
			if m := sig.version.FindStringSubmatch(ua); m != nil {
				c.OSVersion = normalizeOSVersion(sig.name, m[1])
			}
		}
		break
	}

	return c
}

func classifyDevice(lower string) models.DeviceType {
	for _, tok := range tabletTokens {
		if strings.Contains(lower, tok) {
			return models.DeviceTablet
		}
	}

	for _, tok := range mobileTokens {
		if strings.Contains(lower, tok) {
			return models.DeviceMobile
		}
	}

	return models.DeviceDesktop
}

func normalizeOSVersion(os, raw string) string {
	switch os {
	case "Windows":
		if v, ok := windowsVersions[raw]; ok {
			return v
		}
		return raw
	case "iOS", "macOS":
		// Apple UAs use underscores: "10_15_7".
		return strings.ReplaceAll(raw, "_", ".")
	default:
		return raw
	}
}
