package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

// Failure classification. All of these (except ErrNotProtected) lead to the
// same observable item outcome; the distinction exists for logs and metrics.
var (
	// ErrObjectMissing means the object does not exist in the store.
	ErrObjectMissing = errors.New("object missing in store")

	// ErrNoCredentials means store credentials are absent or unusable.
	ErrNoCredentials = errors.New("store credentials not configured")

	// ErrTransient covers network/service failures that are conceptually retryable.
	ErrTransient = errors.New("transient object store error")

	// ErrNotProtected means the locator does not point at protected storage;
	// the item resolves to NOT_NEEDED and is never retried.
	ErrNotProtected = errors.New("locator is not protected storage")
)

// Expiry ceilings by credential kind. Session-token credentials cannot sign
// past their own lifetime, so requests are capped well below it.
const (
	ShortLivedMaxExpiry = 12 * time.Hour
	LongLivedMaxExpiry  = 7 * 24 * time.Hour
)

// Signer is the contract the worker consumes. *Gateway implements it.
type Signer interface {
	// IsProtected reports whether the locator needs signing at all.
	IsProtected(locator string) bool

	// IssueSignedURL exchanges a protected locator for a signed URL valid
	// for at most ttl. On ANY failure it returns the original locator
	// unchanged together with a classified error; callers distinguish
	// success by comparing output to input and inspecting the error.
	IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

// Gateway implements Signer on top of an ObjectStorage client.
type Gateway struct {
	storage repository.ObjectStorage
}

// Compile-time verification that Gateway implements Signer.
var _ Signer = (*Gateway)(nil)

// New creates a Gateway backed by the given object storage.
func New(storage repository.ObjectStorage) *Gateway {
	return &Gateway{storage: storage}
}

// IsProtected reports whether the locator points at protected storage.
func (g *Gateway) IsProtected(locator string) bool {
	return IsProtectedLocator(locator)
}

// IssueSignedURL signs a protected locator.
//
// The requested ttl is capped by credential kind (12h for short-lived,
// 7 days for long-lived). The object's existence is verified before signing
// so a READY item never points at a 404.
func (g *Gateway) IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if !IsProtectedLocator(locator) {
		return locator, ErrNotProtected
	}

	bucket, key, ok := ResolveBucketAndKey(locator)
	if !ok {
		return locator, fmt.Errorf("%w: unresolvable locator", ErrNotProtected)
	}

	creds := g.storage.Credentials()
	if !creds.Configured {
		return locator, ErrNoCredentials
	}
	ttl = capExpiry(ttl, creds.ShortLived)

	exists, err := g.storage.Exists(ctx, bucket, key)
	if err != nil {
		return locator, fmt.Errorf("%w: existence check: %v", ErrTransient, err)
	}
	if !exists {
		return locator, fmt.Errorf("%w: %s/%s", ErrObjectMissing, bucket, key)
	}

	signed, err := g.storage.PresignedGetURL(ctx, bucket, key, ttl)
	if err != nil {
		return locator, fmt.Errorf("%w: presign: %v", ErrTransient, err)
	}
	if !IsStructurallyValidSignedURL(signed) {
		return locator, fmt.Errorf("%w: malformed presigned URL", ErrTransient)
	}

	return signed, nil
}

// IsStructurallyValidSignedURL checks that a gateway result is a usable
// absolute http(s) URL. Success is only claimed for output that parses.
func IsStructurallyValidSignedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func capExpiry(ttl time.Duration, shortLived bool) time.Duration {
	ceiling := LongLivedMaxExpiry
	if shortLived {
		ceiling = ShortLivedMaxExpiry
	}
	if ttl <= 0 || ttl > ceiling {
		return ceiling
	}
	return ttl
}

// ConnectivityReport is a diagnostic snapshot for operational tooling.
// Not on the hot path.
type ConnectivityReport struct {
	CredentialsConfigured bool   `json:"credentials_configured"`
	ShortLivedCredentials bool   `json:"short_lived_credentials"`
	StoreReachable        bool   `json:"store_reachable"`
	Error                 string `json:"error,omitempty"`
}

// CheckConnectivity probes the object store and reports what it found.
func (g *Gateway) CheckConnectivity(ctx context.Context) ConnectivityReport {
	creds := g.storage.Credentials()
	report := ConnectivityReport{
		CredentialsConfigured: creds.Configured,
		ShortLivedCredentials: creds.ShortLived,
	}

	if err := g.storage.Ping(ctx); err != nil {
		report.Error = err.Error()
		slog.Warn("object store connectivity check failed", "error", err)
		return report
	}

	report.StoreReachable = true
	return report
}
