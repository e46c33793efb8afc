// Package s3types provides shared type definitions for the bucket scrubber.
package s3types

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxBatchSize is the largest number of targets S3 accepts in one DeleteObjects call
// and the largest page ListObjectVersions returns.
const MaxBatchSize = 1000

// NullVersionID is the version id S3 reports for objects written while
// versioning was disabled or suspended.
const NullVersionID = "null"

// Target identifies a single object version to delete.
type Target struct {
	Key       string
	VersionID string
}

// VersionRecord is one listed object version or delete marker.
type VersionRecord struct {
	// Key is the S3 object key
	Key string

	// VersionID is the version id, "null" for unversioned writes
	VersionID string

	// Size is the version size in bytes, zero for delete markers
	Size int64

	// LastModified is when the version was written
	LastModified time.Time

	// IsDeleteMarker is true when the record is a delete marker
	IsDeleteMarker bool

	// IsLatest is true for the current version of the key
	IsLatest bool

	// ETag is the entity tag of the version, empty for delete markers
	ETag string

	// StorageClass is the storage class of the version
	StorageClass string
}

// Target returns the deletion target for the record.
func (r VersionRecord) Target() Target {
	return Target{Key: r.Key, VersionID: r.VersionID}
}

var _ slog.LogValuer = VersionRecord{}

// LogValue renders the record as a log group.
func (r VersionRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key", r.Key),
		slog.String("version_id", r.VersionID),
		slog.Int64("size", r.Size),
		slog.Time("last_modified", r.LastModified),
		slog.Bool("delete_marker", r.IsDeleteMarker),
		slog.Bool("latest", r.IsLatest),
	)
}

// ContinuationToken is the listing cursor returned with a truncated page.
type ContinuationToken struct {
	KeyMarker       string
	VersionIDMarker string
}

// IsZero reports whether the token carries no position.
func (t ContinuationToken) IsZero() bool {
	return t.KeyMarker == "" && t.VersionIDMarker == ""
}

// ListingPage is one page of a versioned listing.
type ListingPage struct {
	// Records holds versions followed by delete markers, in backend order
	Records []VersionRecord

	// IsTruncated is true when more pages follow
	IsTruncated bool

	// Next is the cursor for the following page, zero when not truncated
	Next ContinuationToken
}

// DeletionRequest is the set of targets sent in one bulk delete call.
type DeletionRequest struct {
	Bucket  string
	Targets []Target
}

// DeletionOutcome is what the backend reported for a DeletionRequest.
type DeletionOutcome struct {
	// Deleted holds the targets the backend confirmed
	Deleted []Target

	// Errors holds per-target failures
	Errors []DeleteError

	// Duration is how long the call took
	Duration time.Duration
}

// DeleteError represents a target the backend refused to delete.
type DeleteError struct {
	// Key is the S3 object key that failed to delete
	Key string

	// VersionID is the version that failed to delete
	VersionID string

	// Code is the S3 error code, e.g. AccessDenied
	Code string

	// Message is the S3 error message
	Message string
}

// Target returns the target the error refers to.
func (e DeleteError) Target() Target {
	return Target{Key: e.Key, VersionID: e.VersionID}
}

// Reconciliation compares a DeletionOutcome against its DeletionRequest.
type Reconciliation struct {
	// Requested is the number of targets in the request
	Requested int

	// Deleted holds requested targets the backend confirmed
	Deleted []Target

	// Errors holds failures for requested targets
	Errors []DeleteError

	// Missing holds requested targets that appear in neither list
	Missing []Target

	// Unexpected holds targets reported by the backend that were never requested
	Unexpected []Target
}

// Consistent reports whether deleted and errored targets partition the request.
func (r *Reconciliation) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// Configuration types for functional options

// ClientConfig holds configuration for the scrubber client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	MaxRetries       int
	RetryMode        string
	Timeout          time.Duration
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Registerer       prometheus.Registerer
}

// ScrubOptionConfig holds configuration for a single scrub or plan via functional options.
type ScrubOptionConfig struct {
	// PageSize is the listing page size, clamped to MaxBatchSize
	PageSize int32

	// CallTimeout bounds each list and delete round trip, zero for none
	CallTimeout time.Duration

	// PageRate limits pages per second, zero for unlimited
	PageRate float64

	// Progress receives page and completion notifications
	Progress ProgressTracker
}

// PageReport summarises one processed page.
type PageReport struct {
	// Page is the 1-based page number
	Page int

	// Records is the number of records listed on the page
	Records int

	// Deleted is the number of confirmed deletions
	Deleted int

	// Errored is the number of per-target failures
	Errored int

	// Unconfirmed is the number of targets missing from the outcome
	Unconfirmed int
}

// ProgressTracker defines the interface for tracking scrub progress.
type ProgressTracker interface {
	// PageDone is called after each page has been deleted and reconciled
	PageDone(report PageReport)

	// Complete is called when the scrub reaches the done state
	Complete()

	// Error is called when the scrub aborts
	Error(err error)
}

type (
	// Option is a functional option for configuring the scrubber client.
	Option func(*ClientConfig)
	// ScrubOption is a functional option for configuring a scrub or plan.
	ScrubOption func(*ScrubOptionConfig)
)
