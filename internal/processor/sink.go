package processor

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bstardust/takeout-geotag/internal/fileinfo"
	"github.com/bstardust/takeout-geotag/internal/fshelper"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/internal/metadata"
	"github.com/bstardust/takeout-geotag/pkg/s3client"
	"github.com/minio/minio-go/v7"
)

// Sink stores a rewritten image under a slash-separated key
type Sink interface {
	Write(ctx context.Context, key string, data []byte, meta *metadata.Metadata) error
	String() string
}

// existenceChecker is implemented by sinks that can tell whether a key was
// already written by an earlier run
type existenceChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// DirSink writes files below a local directory. Using the takeout folder
// itself as the root rewrites the images in place.
type DirSink struct {
	root string
}

// NewDirSink creates a sink rooted at dir
func NewDirSink(dir string) *DirSink {
	return &DirSink{root: dir}
}

func (s *DirSink) Write(ctx context.Context, key string, data []byte, meta *metadata.Metadata) error {
	if !fs.ValidPath(key) {
		return fmt.Errorf("invalid output key %q", key)
	}
	return fshelper.WriteFileAtomic(filepath.Join(s.root, filepath.FromSlash(key)), data, 0o644)
}

func (s *DirSink) String() string {
	return s.root
}

// S3Sink uploads files to a bucket, retrying transient failures
type S3Sink struct {
	client           s3client.S3Interface
	retry            RetryConfig
	preserveMetadata bool
	runID            string

	listOnce sync.Once
	existing map[string]struct{}
	listErr  error
}

// NewS3Sink creates a sink that uploads through client. runID is attached to
// every object as user metadata.
func NewS3Sink(client s3client.S3Interface, retry RetryConfig, preserveMetadata bool, runID string) *S3Sink {
	return &S3Sink{
		client:           client,
		retry:            retry,
		preserveMetadata: preserveMetadata,
		runID:            runID,
	}
}

func (s *S3Sink) Write(ctx context.Context, key string, data []byte, meta *metadata.Metadata) error {
	var metadataMap map[string]string
	if s.preserveMetadata && meta != nil {
		metadataMap = meta.ToMap()
	} else {
		metadataMap = make(map[string]string)
	}
	metadataMap["original-filename"] = path.Base(key)
	if s.runID != "" {
		metadataMap["geotag-run-id"] = s.runID
	}
	contentType := fileinfo.GetContentType(key)

	return RetryWithBackoff(ctx, "upload "+key, func() error {
		return s.client.UploadFile(ctx, bytes.NewReader(data), key, int64(len(data)), metadataMap, contentType)
	}, s.retry)
}

// Exists reports whether the object is already in the bucket. The bucket is
// listed once on first use; if that fails, keys are checked one by one.
func (s *S3Sink) Exists(ctx context.Context, key string) (bool, error) {
	s.listOnce.Do(func() {
		s.existing, s.listErr = s.listExisting(ctx)
	})
	if s.listErr == nil {
		_, ok := s.existing[key]
		return ok, nil
	}

	var exists bool
	err := RetryWithBackoff(ctx, "stat "+key, func() error {
		var err error
		exists, err = s.client.ObjectExists(ctx, key)
		return err
	}, s.retry)
	return exists, err
}

// listExisting returns the keys below the client prefix, relative to it
func (s *S3Sink) listExisting(ctx context.Context) (map[string]struct{}, error) {
	var objects []minio.ObjectInfo
	err := RetryWithBackoff(ctx, "list "+s.String(), func() error {
		var err error
		objects, err = s.client.ListObjects(ctx, "")
		return err
	}, s.retry)
	if err != nil {
		logger.Warn("Listing %s failed, checking objects one by one: %v", s, err)
		return nil, err
	}

	prefix := strings.Trim(s.client.GetPrefix(), "/")
	keys := make(map[string]struct{}, len(objects))
	for _, o := range objects {
		key := o.Key
		if prefix != "" {
			key = strings.TrimPrefix(key, prefix+"/")
		}
		keys[key] = struct{}{}
	}
	logger.Debug("%d objects already in %s", len(keys), s)
	return keys, nil
}

func (s *S3Sink) String() string {
	return fmt.Sprintf("s3://%s/%s", s.client.GetBucketName(), s.client.GetPrefix())
}
