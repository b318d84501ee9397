package s3client

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config represents the configuration for an S3 client
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// Client is an S3 client backed by the MinIO SDK. It works with AWS S3,
// MinIO, Backblaze B2 and other S3-compatible services.
type Client struct {
	client minioAPI
	config Config
}

// New creates a new S3 client and checks that the bucket exists
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("S3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 access key and secret key are required")
	}

	// Remove protocol prefix if present
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	c, err := newClient(ctx, client, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to S3 endpoint %s, bucket %s", endpoint, cfg.Bucket)
	return c, nil
}

func newClient(ctx context.Context, api minioAPI, cfg Config) (*Client, error) {
	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist: %w", cfg.Bucket, ErrBucketNotFound)
	}
	return &Client{client: api, config: cfg}, nil
}

// UploadFile uploads an object under the configured prefix
func (c *Client) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	objectKey = c.getObjectKey(objectKey)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	}

	info, err := c.client.PutObject(ctx, c.config.Bucket, objectKey, reader, size, opts)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	logger.Debug("Uploaded file to %s (%d bytes, etag: %s)", objectKey, info.Size, info.ETag)
	return nil
}

// ObjectExists checks if an object exists in the bucket
func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	objectKey = c.getObjectKey(objectKey)

	_, err := c.client.StatObject(ctx, c.config.Bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}

	return true, nil
}

// ListObjects lists objects in the bucket with the given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	prefix = c.getObjectKey(prefix)

	var objects []minio.ObjectInfo
	objectCh := c.client.ListObjects(ctx, c.config.Bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		objects = append(objects, object)
	}

	return objects, nil
}

// getObjectKey returns the full object key with prefix
func (c *Client) getObjectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	prefix := strings.Trim(c.config.Prefix, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// GetBucketName returns the bucket name
func (c *Client) GetBucketName() string {
	return c.config.Bucket
}

// GetPrefix returns the prefix
func (c *Client) GetPrefix() string {
	return c.config.Prefix
}
