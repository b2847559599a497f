package shopify

import (
	"net/url"
	"regexp"
	"strings"
)

// ShopSuffix is the canonical host suffix of every storefront.
const ShopSuffix = ".myshopify.com"

var (
	storeNamePattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)
)

// NormalizeShopDomain turns user input ("my-store", "https://My-Store.myshopify.com/admin",
// "my-store.myshopify.com") into the canonical host. The boolean is false when
// the input cannot name a storefront. Normalizing a normalized host returns it
// unchanged.
func NormalizeShopDomain(input string) (string, bool) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", false
	}

	host := hostFromURL(raw)
	if host == "" {
		host = stripURLParts(raw)
	}
	host = strings.Trim(strings.ToLower(host), "/")

	if strings.HasSuffix(host, ShopSuffix) {
		if !validStoreName(strings.TrimSuffix(host, ShopSuffix)) {
			return "", false
		}
		return host, true
	}

	if !strings.Contains(host, ".") && validStoreName(host) {
		return host + ShopSuffix, true
	}

	return "", false
}

// ValidateShopDomain is the strict check applied to hosts arriving on the
// OAuth redirect. Unlike NormalizeShopDomain it never rewrites its input.
func ValidateShopDomain(host string) bool {
	return shopDomainPattern.MatchString(host)
}

func hostFromURL(raw string) string {
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

func stripURLParts(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}

func validStoreName(name string) bool {
	return len(name) >= 1 && len(name) <= 63 && storeNamePattern.MatchString(name)
}
