package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Tracking parameters dropped during canonicalisation. LinkedIn decorates
// shared profile and post URLs with trk/refId style parameters that change
// per visit without changing the page.
var trackingParams = map[string]struct{}{
	"utm_source":        {},
	"utm_medium":        {},
	"utm_campaign":      {},
	"utm_term":          {},
	"utm_content":       {},
	"utm_id":            {},
	"gclid":             {},
	"dclid":             {},
	"fbclid":            {},
	"msclkid":           {},
	"igshid":            {},
	"li_fat_id":         {},
	"trk":               {},
	"trkinfo":           {},
	"trackingid":        {},
	"refid":             {},
	"original_referer":  {},
	"originalsubdomain": {},
}

// CanonicalURL normalises raw for comparison: scheme and host lowercase,
// default ports and fragments dropped, path cleaned, tracking parameters
// removed and the remaining query sorted. A missing scheme defaults to https.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}

	parsed, err := parseLoose(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", errors.New("url missing host")
	}
	if port := defaultPort(parsed.Scheme); port != "" {
		host = strings.TrimSuffix(host, port)
	}
	parsed.Host = host

	parsed.Path = cleanPath(parsed.Path)
	parsed.Fragment = ""
	parsed.RawQuery = canonicalQuery(parsed.Query())

	return parsed.String(), nil
}

// URLFingerprint returns the SHA-256 hex digest of the canonical URL, so URL
// variants of one page share a cache key.
func URLFingerprint(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// parseLoose parses raw, tolerating schemeless input like example.com/path
// or //example.com/path.
func parseLoose(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			return url.Parse("https:" + raw)
		}
		return url.Parse("https://" + raw)
	}
	return parsed, nil
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return ":80"
	case "https":
		return ":443"
	}
	return ""
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		cleaned = "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	// path.Clean drops an explicit trailing slash; keep it, servers treat
	// /path and /path/ differently.
	if cleaned != "/" && strings.HasSuffix(p, "/") && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}
	return cleaned
}

func canonicalQuery(q url.Values) string {
	for key := range q {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			q.Del(key)
		}
	}
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		values := append([]string(nil), q[key]...)
		sort.Strings(values)
		for _, value := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			if value != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
	}
	return b.String()
}
