// Package errors provides error types and handling for bucket scrub operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a scrub operation error with context about the operation that failed.
// It wraps the underlying AWS SDK error with additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "listVersions", "deleteObjects")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// VersionID is the object version (if applicable)
	VersionID string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	object := e.Key
	if e.VersionID != "" {
		object = fmt.Sprintf("%s?versionId=%s", e.Key, e.VersionID)
	}
	if e.Bucket != "" && object != "" {
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, object, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if object != "" {
		return fmt.Sprintf("s3.%s object %s: %v", e.Op, object, e.Err)
	}
	return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithVersion adds object version context to an existing error.
func (e *Error) WithVersion(versionID string) *Error {
	e.VersionID = versionID
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewBucketError creates a new Error with bucket context.
func NewBucketError(op, bucket string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Err:    err,
	}
}

// Sentinel errors for scrub failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrBackendUnavailable indicates the storage backend could not be reached
	// or its response could not be read
	ErrBackendUnavailable = errors.New("s3: backend unavailable")

	// ErrBackendRejected indicates the backend answered the request with an error
	ErrBackendRejected = errors.New("s3: backend rejected request")

	// ErrPartialDeletion indicates some targets of a bulk delete were not deleted
	ErrPartialDeletion = errors.New("s3: partial deletion failure")

	// ErrReconciliationMismatch indicates the backend's delete report does not
	// partition the requested targets
	ErrReconciliationMismatch = errors.New("s3: reconciliation mismatch")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3: invalid bucket name")

	// ErrAborted indicates the scrub stopped at a page boundary before completion
	ErrAborted = errors.New("s3: scrub aborted")
)

// IsBackendUnavailable checks if an error indicates the backend was unreachable.
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsBackendRejected checks if an error indicates the backend refused the request.
func IsBackendRejected(err error) bool {
	return errors.Is(err, ErrBackendRejected)
}

// IsPartialDeletion checks if an error reports per-target deletion failures.
func IsPartialDeletion(err error) bool {
	return errors.Is(err, ErrPartialDeletion)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidBucketName)
}

// IsFatal reports whether err aborts a scrub. Per-target failures and
// reconciliation mismatches are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPartialDeletion) && !errors.Is(err, ErrReconciliationMismatch)
}
