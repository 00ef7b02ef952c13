package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	edgeWindowsUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	safariMacUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	firefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	chromeAndroidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	safariIPadUA    = "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
)

func TestClassify_Bots(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "Googlebot"},
		{"bingbot", "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", "Bingbot"},
		{"twitterbot", "Twitterbot/1.0", "Twitterbot"},
		{"curl", "curl/8.4.0", "Generic Bot"},
		{"wget", "Wget/1.21.4", "Generic Bot"},
		{"python requests", "python-requests/2.31.0", "Generic Bot"},
		{"headless chrome", "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0.0.0", "Generic Bot"},
		{"generic spider", "SomeSpider/0.1", "Generic Bot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.ua)

			assert.True(t, c.IsBot)
			assert.Equal(t, tt.want, c.Browser)
			assert.Equal(t, models.DeviceDesktop, c.DeviceType)
		})
	}
}

func TestClassify_BotDetectionRunsFirst(t *testing.T) {
	// A bot token anywhere in the string wins even when browser and OS
	// tokens are present.
	c := Classify("Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/) Chrome/120.0")

	assert.True(t, c.IsBot)
	assert.Equal(t, "AhrefsBot", c.Browser)
	assert.Empty(t, c.OS)
}

func TestClassify_Browsers(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantBrowser string
		wantVersion string
	}{
		{"chrome on windows", chromeWindowsUA, "Chrome", "120.0.0.0"},
		{"edge wins over chrome", edgeWindowsUA, "Edge", "120.0.2210.91"},
		{"safari via version token", safariMacUA, "Safari", "17.1"},
		{"firefox", firefoxLinuxUA, "Firefox", "121.0"},
		{"opera", "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0", "Opera", "105.0.0.0"},
		{"samsung internet", "Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36", "Samsung Internet", "23.0"},
		{"chrome on ios", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1", "Chrome", "120.0.6099.119"},
		{"internet explorer 11", "Mozilla/5.0 (Windows NT 6.1; Trident/7.0; rv:11.0) like Gecko", "Internet Explorer", "11.0"},
		{"unknown", "SomethingNovel/1.0", "Unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.ua)

			assert.False(t, c.IsBot)
			assert.Equal(t, tt.wantBrowser, c.Browser)
			assert.Equal(t, tt.wantVersion, c.BrowserVersion)
		})
	}
}

func TestClassify_OS(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantOS      string
		wantVersion string
	}{
		{"windows 10", chromeWindowsUA, "Windows", "10"},
		{"windows 7", "Mozilla/5.0 (Windows NT 6.1; Win64; x64) Chrome/109.0.0.0 Safari/537.36", "Windows", "7"},
		{"android wins over linux", chromeAndroidUA, "Android", "14"},
		{"ios underscores normalized", safariIPhoneUA, "iOS", "17.1"},
		{"macos underscores normalized", safariMacUA, "macOS", "10.15.7"},
		{"plain linux", firefoxLinuxUA, "Linux", ""},
		{"chrome os", "Mozilla/5.0 (X11; CrOS x86_64 14541.0.0) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36", "Chrome OS", "14541.0.0"},
		{"unknown", "SomethingNovel/1.0", "Unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.ua)

			assert.Equal(t, tt.wantOS, c.OS)
			assert.Equal(t, tt.wantVersion, c.OSVersion)
		})
	}
}

func TestClassify_DeviceType(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want models.DeviceType
	}{
		{"desktop", chromeWindowsUA, models.DeviceDesktop},
		{"android phone", chromeAndroidUA, models.DeviceMobile},
		{"iphone", safariIPhoneUA, models.DeviceMobile},
		{"ipad wins over mobile token", safariIPadUA, models.DeviceTablet},
		{"android tablet", "Mozilla/5.0 (Linux; Android 13; SM-T970) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36", models.DeviceTablet},
		{"kindle", "Mozilla/5.0 (Linux; Android 9; KFONWI) AppleWebKit/537.36 Silk/120.2.1 Chrome/120.0.0.0 Safari/537.36", models.DeviceTablet},
		{"empty string", "", models.DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ua).DeviceType)
		})
	}
}
