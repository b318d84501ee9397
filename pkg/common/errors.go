package common

import (
	"errors"
	"fmt"
)

// Error kinds returned by the embedding pipeline. Match them with errors.Is.
var (
	ErrInvalidInputFormat = errors.New("invalid input format")
	ErrTruncatedSegment   = errors.New("truncated segment")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrIO                 = errors.New("i/o error")
	ErrEncoding           = errors.New("encoding error")
)

// MediaError describes a failure while processing one media file.
type MediaError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *MediaError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *MediaError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewMediaError wraps err with a kind. If err already carries a kind, that kind wins.
func NewMediaError(op, path string, kind, err error) error {
	if k := KindOf(err); k != nil {
		kind = k
	}
	return &MediaError{Op: op, Path: path, Kind: kind, Err: err}
}

// KindOf returns the error kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrInvalidInputFormat, ErrTruncatedSegment, ErrUnsupportedFormat, ErrIO, ErrEncoding} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Configuration Error: %s", e.Message)
}

func NewConfigError(message string) error {
	return &ConfigError{Message: message}
}
