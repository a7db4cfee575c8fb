package headers

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	browserChrome  = "chrome"
	browserEdge    = "edge"
	browserFirefox = "firefox"

	platformWindows = "windows"
	platformMacOS   = "macos"
	platformLinux   = "linux"

	chromiumMinVersion = 128
	chromiumMaxVersion = 141
	firefoxMinVersion  = 128
	firefoxMaxVersion  = 143

	chromiumAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	firefoxAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptEncoding = "gzip, deflate, br, zstd"
)

var (
	browsers  = []string{browserChrome, browserEdge, browserFirefox}
	platforms = []string{platformWindows, platformMacOS, platformLinux}

	chromiumLanguages = []string{"en-US,en;q=0.9", "en-GB,en-US;q=0.9,en;q=0.8", "en-US,en;q=0.9,de;q=0.8"}
	firefoxLanguages  = []string{"en-US,en;q=0.5", "en-GB,en;q=0.5"}

	platformTokens = map[string]string{
		platformWindows: "Windows NT 10.0; Win64; x64",
		platformMacOS:   "Macintosh; Intel Mac OS X 10_15_7",
		platformLinux:   "X11; Linux x86_64",
	}
	firefoxPlatformTokens = map[string]string{
		platformWindows: "Windows NT 10.0; Win64; x64",
		platformMacOS:   "Macintosh; Intel Mac OS X 10.15",
		platformLinux:   "X11; Linux x86_64",
	}
	clientHintPlatforms = map[string]string{
		platformWindows: `"Windows"`,
		platformMacOS:   `"macOS"`,
		platformLinux:   `"Linux"`,
	}
)

// profile is one desktop browser identity.
type profile struct {
	browser  string
	platform string
	version  int
}

func (p profile) chromium() bool { return p.browser != browserFirefox }

func (p profile) userAgent() string {
	if !p.chromium() {
		return fmt.Sprintf("Mozilla/5.0 (%s; rv:%d.0) Gecko/20100101 Firefox/%d.0",
			firefoxPlatformTokens[p.platform], p.version, p.version)
	}
	ua := fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		platformTokens[p.platform], p.version)
	if p.browser == browserEdge {
		ua += fmt.Sprintf(" Edg/%d.0.0.0", p.version)
	}
	return ua
}

func (p profile) secChUa() string {
	brand := "Google Chrome"
	if p.browser == browserEdge {
		brand = "Microsoft Edge"
	}
	return fmt.Sprintf(`"%s";v="%d", "Chromium";v="%d", "Not?A_Brand";v="99"`, brand, p.version, p.version)
}

// BrowserGenerator draws desktop Chrome, Edge and Firefox identities at random.
// It is safe for concurrent use.
type BrowserGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBrowserGenerator returns a generator whose output is fully determined by seed.
func NewBrowserGenerator(seed uint64) *BrowserGenerator {
	return &BrowserGenerator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// DefaultGenerator returns a randomly seeded BrowserGenerator.
func DefaultGenerator() *BrowserGenerator {
	return &BrowserGenerator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// UserAgent returns a single realistic desktop user agent.
func (g *BrowserGenerator) UserAgent() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pickProfile().userAgent()
}

// BrowserHeaders returns a coherent header set for one random browser profile,
// including its User-Agent.
func (g *BrowserGenerator) BrowserHeaders() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.pickProfile()
	out := map[string]string{
		HeaderUserAgent:             p.userAgent(),
		"Accept-Encoding":           acceptEncoding,
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
	}

	if p.chromium() {
		out["Accept"] = chromiumAccept
		out["Accept-Language"] = g.pick(chromiumLanguages)
		out["Sec-Ch-Ua"] = p.secChUa()
		out["Sec-Ch-Ua-Mobile"] = "?0"
		out["Sec-Ch-Ua-Platform"] = clientHintPlatforms[p.platform]
	} else {
		out["Accept"] = firefoxAccept
		out["Accept-Language"] = g.pick(firefoxLanguages)
	}
	return out
}

// Referer returns a search results URL for the target's site name.
func (g *BrowserGenerator) Referer(target string) string {
	return ConvincingReferer(target)
}

// pickProfile must be called with g.mu held.
func (g *BrowserGenerator) pickProfile() profile {
	p := profile{
		browser:  g.pick(browsers),
		platform: g.pick(platforms),
	}
	if p.chromium() {
		p.version = chromiumMinVersion + g.rnd.IntN(chromiumMaxVersion-chromiumMinVersion+1)
	} else {
		p.version = firefoxMinVersion + g.rnd.IntN(firefoxMaxVersion-firefoxMinVersion+1)
	}
	return p
}

func (g *BrowserGenerator) pick(values []string) string {
	return values[g.rnd.IntN(len(values))]
}
