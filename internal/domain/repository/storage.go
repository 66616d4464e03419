package repository

import (
	"context"
	"time"
)

// CredentialInfo describes the object-store credentials in use. Short-lived
// (session-token) credentials cannot sign URLs past their own lifetime, so
// the gateway caps requested expiries differently per kind.
type CredentialInfo struct {
	Configured bool
	ShortLived bool
}

// ObjectStorage defines the object-store operations the gateway needs.
// Unlike a fixed-bucket client, every call takes an explicit bucket because
// locators resolve to arbitrary buckets.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// Exists checks whether an object exists. A missing object is
	// (false, nil), not an error.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// PresignedGetURL creates a time-limited signed download URL.
	PresignedGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	// Credentials reports how the client is authenticated.
	Credentials() CredentialInfo

	// Ping verifies the storage service is reachable.
	Ping(ctx context.Context) error
}
