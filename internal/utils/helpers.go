package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateS3BucketName checks if the provided S3 bucket name is valid according to AWS naming conventions.
func ValidateS3BucketName(bucketName string) error {
	if len(bucketName) < 3 || len(bucketName) > 63 {
		return errors.New("bucket name must be between 3 and 63 characters")
	}
	if strings.Contains(bucketName, " ") {
		return errors.New("bucket name cannot contain spaces")
	}
	if !isDNSCompatible(bucketName) {
		return errors.New("bucket name must be DNS compliant")
	}
	if strings.Contains(bucketName, "..") {
		return errors.New("bucket name cannot contain consecutive dots")
	}
	if net.ParseIP(bucketName) != nil {
		return errors.New("bucket name cannot be formatted as an IP address")
	}
	return nil
}

// isDNSCompatible checks if the bucket name is DNS compliant.
func isDNSCompatible(name string) bool {
	// Lowercase letters, digits, hyphens and dots; first and last must be alphanumeric.
	for i, char := range name {
		alnum := (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')
		if (i == 0 || i == len(name)-1) && !alnum {
			return false
		}
		if !alnum && char != '-' && char != '.' {
			return false
		}
	}
	return true
}

// ParseS3Endpoint accepts either a bare host[:port] or a URL. For a URL the
// host is returned along with whether its scheme asks for TLS.
func ParseS3Endpoint(raw string) (host string, secure bool, hasScheme bool, err error) {
	if !strings.Contains(raw, "://") {
		return raw, false, false, nil
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return "", false, false, err
	}
	switch parsedURL.Scheme {
	case "https":
		secure = true
	case "http":
	default:
		return "", false, false, fmt.Errorf("unsupported endpoint scheme %q", parsedURL.Scheme)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return "", false, false, errors.New("endpoint URL cannot have a path")
	}
	return parsedURL.Host, secure, true, nil
}
