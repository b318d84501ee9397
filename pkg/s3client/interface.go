package s3client

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// S3Interface defines the operations the geotagging pipeline needs from a bucket
type S3Interface interface {
	UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	ListObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
	GetBucketName() string
	GetPrefix() string
}

// minioAPI is the subset of *minio.Client used by Client
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

var _ S3Interface = (*Client)(nil)
