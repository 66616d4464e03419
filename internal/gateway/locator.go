// Package gateway exchanges protected object-store locators for short-lived
// signed URLs. Locator parsing is pure; signing goes through the injected
// object storage and never panics. Failures hand the original locator back
// with a classified error.
package gateway

import (
	"net/url"
	"regexp"
	"strings"
)

// Protected-storage URL shapes. Query strings are stripped before matching
// so locators that already carry stale signing parameters still resolve.
var (
	// virtual-hosted style: https://bucket.s3.region.amazonaws.com/key
	// (also matches the legacy region-less https://bucket.s3.amazonaws.com/key)
	virtualHostedPattern = regexp.MustCompile(`^https?://(?:([^.]+)\.)?s3[.-](?:[^.]+[.-])?amazonaws\.com/(.+)$`)

	// path style: https://s3.amazonaws.com/bucket/key
	pathStylePattern = regexp.MustCompile(`^https?://s3\.amazonaws\.com/([^/]+)/(.+)$`)

	// native scheme: s3://bucket/key
	nativeSchemePattern = regexp.MustCompile(`^s3://([^/]+)/(.+)$`)
)

// IsProtectedLocator reports whether a locator points at protected object
// storage and therefore needs a signed URL before clients can read it.
// Pure function, no I/O.
func IsProtectedLocator(locator string) bool {
	if locator == "" {
		return false
	}
	base := stripQuery(locator)
	return virtualHostedPattern.MatchString(base) ||
		pathStylePattern.MatchString(base) ||
		nativeSchemePattern.MatchString(base)
}

// ResolveBucketAndKey extracts the bucket and percent-decoded object key
// from a protected locator. Returns ok=false for anything it cannot parse.
func ResolveBucketAndKey(locator string) (bucket, key string, ok bool) {
	base := stripQuery(locator)

	if m := virtualHostedPattern.FindStringSubmatch(base); m != nil && m[1] != "" {
		return m[1], decodeKey(m[2]), true
	}
	if m := pathStylePattern.FindStringSubmatch(base); m != nil {
		return m[1], decodeKey(m[2]), true
	}
	if m := nativeSchemePattern.FindStringSubmatch(base); m != nil {
		return m[1], decodeKey(m[2]), true
	}

	// Fallback: any s3-flavored host with a bucket-first path.
	parsed, err := url.Parse(base)
	if err != nil {
		return "", "", false
	}
	if !strings.Contains(parsed.Host, "s3") {
		return "", "", false
	}
	parts := strings.SplitN(strings.Trim(parsed.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], decodeKey(parts[1]), true
}

// stripQuery drops any pre-existing query-string signing parameters so the
// base object path is what gets matched and resolved.
func stripQuery(locator string) string {
	if idx := strings.IndexByte(locator, '?'); idx >= 0 {
		return locator[:idx]
	}
	return locator
}

func decodeKey(key string) string {
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
