package crawl

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	storeIDRe   = regexp.MustCompile(`/store/[^/]+/([A-Za-z0-9_-]{20,})`)
	storeSlugRe = regexp.MustCompile(`/store/([^/]+)/`)
	priceRe     = regexp.MustCompile(`\$\s*(\d[\d,]*)`)
)

// ExtractStoreID returns the base64url store UUID from a
// /store/{slug}/{id} URL, or "" when the URL is not a store link.
func ExtractStoreID(rawURL string) string {
	m := storeIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractStoreSlug returns the human-readable slug portion of a store URL,
// percent-decoded.
func ExtractStoreSlug(rawURL string) string {
	m := storeSlugRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	slug, err := url.PathUnescape(m[1])
	if err != nil {
		return m[1]
	}
	return slug
}

// BuildStoreURL assembles the canonical store page URL. The feed URL's
// locale segment (e.g. "/tw") is preserved so store URLs stay within the
// same region.
func BuildStoreURL(feedURL, slug, storeID string) string {
	region := ""
	if u, err := url.Parse(feedURL); err == nil {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) > 0 && parts[0] != "" && parts[0] != "feed" {
			region = "/" + parts[0]
		}
		return u.Scheme + "://" + u.Host + region + "/store/" + url.PathEscape(slug) + "/" + storeID
	}
	return feedURL + "/store/" + url.PathEscape(slug) + "/" + storeID
}

// ParsePrice extracts an integer TWD price from strings like "$120",
// "NT$350", or "$1,200". Returns (0, false) when no price is present.
func ParsePrice(text string) (int, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// CanonicalURL normalizes a URL for deduplication: lowercases scheme and
// host, drops the fragment, sorts query parameters, and trims the trailing
// slash (except root).
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String()
}
