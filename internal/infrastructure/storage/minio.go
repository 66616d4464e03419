package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

// minioClient defines the interface for MinIO operations.
// This abstraction allows for easier unit testing with mocks.
type minioClient interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

// ClientConfig holds configuration for the MinIO client.
type ClientConfig struct {
	Endpoint       string
	PublicEndpoint string // Optional: external-facing endpoint for presigned URLs
	AccessKey      string
	SecretKey      string
	SessionToken   string // Non-empty for assumed-role style credentials
	UseSSL         bool
}

// Client wraps a MinIO client and implements repository.ObjectStorage.
// Buckets are resolved per call from locators, so no bucket is fixed here.
type Client struct {
	client          minioClient
	presignedClient minioClient // Separate client for presigned URLs (may use public endpoint)
	creds           repository.CredentialInfo
}

// Compile-time verification that Client implements repository.ObjectStorage.
var _ repository.ObjectStorage = (*Client)(nil)

// NewClient creates a new MinIO client.
// If PublicEndpoint is set, a separate client is created for presigned URL
// generation so signed URLs resolve from outside the cluster.
func NewClient(cfg ClientConfig) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	var presignedClient minioClient = client
	if cfg.PublicEndpoint != "" {
		pc, err := minio.New(cfg.PublicEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create presigned minio client: %w", err)
		}
		presignedClient = pc
	}

	return newClientWithMinioClient(client, presignedClient, credentialInfo(cfg)), nil
}

// newClientWithMinioClient creates a Client with given minioClient implementations.
// This is used for dependency injection in tests.
func newClientWithMinioClient(client, presignedClient minioClient, creds repository.CredentialInfo) *Client {
	return &Client{
		client:          client,
		presignedClient: presignedClient,
		creds:           creds,
	}
}

// credentialInfo classifies the configured credentials. A session token
// marks assumed-role style credentials, which cannot sign URLs past their
// own (short) lifetime.
func credentialInfo(cfg ClientConfig) repository.CredentialInfo {
	return repository.CredentialInfo{
		Configured: cfg.AccessKey != "" && cfg.SecretKey != "",
		ShortLived: cfg.SessionToken != "",
	}
}

// Exists checks whether an object exists. A missing object is (false, nil).
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket":
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// PresignedGetURL creates a presigned URL for downloading an object.
// Uses presignedClient which may be configured with a public endpoint.
func (c *Client) PresignedGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	presignedURL, err := c.presignedClient.PresignedGetObject(ctx, bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presignedURL.String(), nil
}

// Credentials reports how the client is authenticated.
func (c *Client) Credentials() repository.CredentialInfo {
	return c.creds
}

// Ping verifies the MinIO connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}
