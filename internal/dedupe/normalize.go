package dedupe

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// Legal-form suffixes dropped from organization names.
var orgSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "llc": {}, "ltd": {}, "limited": {},
	"corp": {}, "corporation": {}, "co": {}, "company": {}, "plc": {},
	"gmbh": {}, "ag": {}, "sa": {}, "bv": {}, "oy": {}, "ab": {},
}

// Tracking parameters dropped from posting URLs.
var trackingParams = map[string]struct{}{
	"gclid": {}, "fbclid": {}, "ref": {}, "source": {}, "src": {},
	"trk": {}, "lever-source": {}, "gh_src": {}, "utm_source": {},
}

// NormalizeText lowercases s, turns punctuation into spaces and collapses
// whitespace.
func NormalizeText(s string) string {
	return strings.Join(words(s), " ")
}

// NormalizeOrganization is NormalizeText without trailing legal forms.
func NormalizeOrganization(s string) string {
	ws := words(s)
	for len(ws) > 1 {
		if _, ok := orgSuffixes[ws[len(ws)-1]]; !ok {
			break
		}
		ws = ws[:len(ws)-1]
	}
	return strings.Join(ws, " ")
}

// NormalizeURL reduces a posting URL to what identifies the posting: host
// without "www.", path without trailing slash, and non-tracking query
// parameters in sorted order. Scheme and fragment are dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")

	kept := url.Values{}
	for key, values := range u.Query() {
		lower := strings.ToLower(key)
		if _, skip := trackingParams[lower]; skip || strings.HasPrefix(lower, "utm_") {
			continue
		}
		values = append([]string(nil), values...)
		sort.Strings(values)
		kept[key] = values
	}

	normalized := host + path
	if len(kept) > 0 {
		// Encode sorts by key.
		normalized += "?" + kept.Encode()
	}

	return normalized
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
