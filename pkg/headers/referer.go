package headers

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const searchEngineURL = "https://www.google.com/search?q="

// ConvincingReferer builds a referer that looks like a search for the target's site,
// e.g. https://shop.example.co.uk/cart -> https://www.google.com/search?q=example.
func ConvincingReferer(target string) string {
	return searchEngineURL + url.QueryEscape(SiteName(target))
}

// SiteName returns the registrable domain of target without its public suffix.
// IP addresses and hosts without a known suffix are returned unchanged.
func SiteName(target string) string {
	host := hostname(target)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	suffix, _ := publicsuffix.PublicSuffix(registrable)
	if name := strings.TrimSuffix(registrable, "."+suffix); name != "" {
		return name
	}
	return host
}

func hostname(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, err = url.Parse("//" + target)
		if err != nil {
			return ""
		}
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
