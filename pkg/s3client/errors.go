package s3client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Common errors
var (
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrObjectNotFound     = errors.New("object not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
)

// retryableCodes are S3 error codes that usually clear up on their own
var retryableCodes = map[string]bool{
	"RequestTimeout":         true,
	"RequestTimeTooSkewed":   true,
	"InternalError":          true,
	"SlowDown":               true,
	"OperationAborted":       true,
	"ServiceUnavailable":     true,
	"RequestLimitExceeded":   true,
	"BandwidthLimitExceeded": true,
	"ThrottlingException":    true,
	"KMSThrottlingException": true,
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrBucketNotFound) || errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch minioErr.Code {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrPermissionDenied) {
		return true
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch minioErr.Code {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AuthorizationHeaderMalformed":
			return true
		}
	}
	return false
}

// IsRetryable reports whether an upload that failed with err is worth
// another attempt. Cancellation and auth failures never are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsAuthError(err) || IsNotFoundError(err) {
		return false
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		if retryableCodes[minioErr.Code] {
			return true
		}
		if minioErr.StatusCode >= 500 {
			return true
		}
	}

	// transport-level failures carry no S3 code
	lowerErr := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection reset", "connection refused", "broken pipe", "eof"} {
		if strings.Contains(lowerErr, s) {
			return true
		}
	}
	return false
}

// FormatError formats an error for display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return fmt.Sprintf("S3 error: %s (code: %s)", minioErr.Message, minioErr.Code)
	}

	return err.Error()
}
