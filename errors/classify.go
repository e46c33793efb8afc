package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind is a string code describing the class of a scrub error.
// Codes are string-based for debuggability and natural JSON serialization.
type Kind string

const (
	// KindBackendUnavailable indicates a transport failure reaching the backend.
	KindBackendUnavailable Kind = "BACKEND_UNAVAILABLE"

	// KindBackendRejected indicates the backend refused the request.
	KindBackendRejected Kind = "BACKEND_REJECTED"

	// KindPartialDeletion indicates per-target deletion failures.
	KindPartialDeletion Kind = "PARTIAL_DELETION_FAILURE"

	// KindReconciliationMismatch indicates an inconsistent bulk delete report.
	KindReconciliationMismatch Kind = "RECONCILIATION_MISMATCH"

	// KindInvalidInput indicates bad arguments.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindAborted indicates the scrub stopped between pages.
	KindAborted Kind = "ABORTED"

	// KindUnknown indicates an unclassified error.
	KindUnknown Kind = "UNKNOWN"
)

// KindOf returns the Kind of err, or the empty Kind for nil.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAborted):
		return KindAborted
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrBackendRejected):
		return KindBackendRejected
	case errors.Is(err, ErrPartialDeletion):
		return KindPartialDeletion
	case errors.Is(err, ErrReconciliationMismatch):
		return KindReconciliationMismatch
	case IsInvalidInput(err):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// Classify maps an AWS SDK error onto ErrBackendRejected or ErrBackendUnavailable.
// An API error response means the backend understood and refused the request;
// anything else, including context expiry, means no usable response arrived.
// The original error stays reachable through errors.Is and errors.As.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrBackendRejected) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &classified{sentinel: ErrBackendRejected, err: err}
	}

	return &classified{sentinel: ErrBackendUnavailable, err: err}
}

// APICode returns the S3 error code carried by err, if any.
func APICode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// classified pairs a taxonomy sentinel with the original error so both
// remain reachable through errors.Is and errors.As.
type classified struct {
	sentinel error
	err      error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.sentinel, c.err)
}

func (c *classified) Unwrap() []error {
	return []error{c.sentinel, c.err}
}
