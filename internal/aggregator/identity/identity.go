package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/dto"
)

// Identity carries the stable key and the content fingerprint derived from
// one raw item.
type Identity struct {
	Key         string
	Fingerprint string
}

// Derive computes the identity of a raw item: the source GUID when present,
// otherwise a deterministic fallback from the normalized URL. Returns
// apperrors.ErrMalformedItem when neither yields an identity.
func Derive(item dto.RawItem) (Identity, error) {
	key := strings.TrimSpace(item.GUID)
	if key == "" {
		normalized, ok := NormalizeURL(item.URL)
		if !ok {
			return Identity{}, apperrors.ErrMalformedItem
		}
		key = "url:" + normalized
	}

	return Identity{
		Key:         key,
		Fingerprint: Fingerprint(item.Title, item.Content),
	}, nil
}

// Fingerprint hashes a whitespace-collapsed, case-preserved projection of
// title and body. Fetch-time noise (re-fetched timestamps, feed metadata)
// is outside the projection and does not change the hash.
func Fingerprint(title, body string) string {
	h := sha256.New()
	h.Write([]byte(CollapseWhitespace(title)))
	h.Write([]byte{'\n'})
	h.Write([]byte(CollapseWhitespace(body)))
	return hex.EncodeToString(h.Sum(nil))
}

// CollapseWhitespace trims the string and replaces every run of whitespace
// with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeURL canonicalizes an article URL for identity fallback: lowercase
// scheme and host, fragment dropped, tracking query parameters removed, and
// a single trailing slash stripped.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}
	return u.String(), true
}
