package content

import (
	"crypto/sha256"
	"net/url"
	"sort"
	"strings"

	"github.com/jxskiss/base62"
)

// idHashBytes is how many bytes of the SHA-256 digest make up a content id.
// 16 bytes keeps ids short while leaving collision probability negligible
// at any realistic catalog size.
const idHashBytes = 16

// cacheBustParams are query parameters appended by clients/CDNs purely to
// defeat caching. Two URLs that differ only in these keys reference the
// same physical asset and must resolve to the same content id.
var cacheBustParams = map[string]bool{
	"t":         true,
	"ts":        true,
	"v":         true,
	"ver":       true,
	"cb":        true,
	"cache":     true,
	"nocache":   true,
	"timestamp": true,
	"_":         true,
}

// ResolveID derives the canonical content id. If rawID is non-empty it is
// returned as-is (trusted caller already holds the canonical id). Otherwise
// the id is a base62-encoded truncated SHA-256 of the owner profile id and
// the normalized source URL, joined with a NUL separator so the two
// components can never be confused with each other.
//
// The derivation is deterministic across process restarts and
// implementations; every downstream uniqueness constraint keys off it.
func ResolveID(rawID, ownerProfileID, sourceURL string) string {
	if rawID != "" {
		return rawID
	}

	norm := NormalizeSourceURL(sourceURL)

	data := make([]byte, 0, len(ownerProfileID)+len(norm)+1)
	data = append(data, ownerProfileID...)
	data = append(data, 0)
	data = append(data, norm...)

	sum := sha256.Sum256(data)
	return base62.EncodeToString(sum[:idHashBytes])
}

// NormalizeSourceURL canonicalizes a source URL so that the same logical
// asset resolves identically even when the URL carries a changing cache
// token. Normalization lowercases scheme and host, drops the fragment,
// removes cache-busting query parameters, and re-encodes the remaining
// query with sorted keys.
//
// Unparseable input is returned trimmed but otherwise untouched: a caller
// that consistently sends the same malformed string still gets a stable id.
func NormalizeSourceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if cacheBustParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSortedQuery(q)

	return u.String()
}

// encodeSortedQuery encodes query values with deterministic key order.
// url.Values.Encode already sorts keys, but values within a key keep their
// original order, so sort them too for full determinism.
func encodeSortedQuery(q url.Values) string {
	for _, vs := range q {
		sort.Strings(vs)
	}
	return q.Encode()
}
