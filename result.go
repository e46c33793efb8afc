package scrubber

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// State is a position in the scrub loop.
type State int

const (
	// StateListing requests the next page of versions.
	StateListing State = iota
	// StateDeleting deletes and reconciles the page just listed.
	StateDeleting
	// StateDone is terminal: the last page has been processed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StateDeleting:
		return "deleting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the outcome of a scrub.
type Status string

const (
	// StatusEmptied means every listed version was confirmed deleted.
	StatusEmptied Status = "emptied"
	// StatusPartial means the scrub completed but some versions may remain.
	StatusPartial Status = "partial"
	// StatusAborted means the scrub stopped before the last page.
	StatusAborted Status = "aborted"
)

// Result carries the cumulative counts of a scrub.
type Result struct {
	// RunID identifies the scrub in logs and reports
	RunID  string
	Bucket string
	Prefix string

	Status Status

	// State is StateDone for completed scrubs, or where an aborted scrub stopped
	State State

	// Seen is the number of versions and delete markers listed
	Seen int

	// Deleted is the number of versions the backend confirmed deleted
	Deleted int

	// Errored is the number of versions the backend refused to delete
	Errored int

	// Unconfirmed is the number of versions the backend neither deleted nor reported
	Unconfirmed int

	Pages       int
	DeleteCalls int

	// Mismatches is the number of delete calls whose report did not match the request
	Mismatches int

	// Failures holds every per-version delete failure
	Failures []s3types.DeleteError

	// UnconfirmedTargets holds every version missing from a delete report
	UnconfirmedTargets []s3types.Target

	// Cause is the fatal error of an aborted scrub
	Cause error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Emptied reports whether every listed version was confirmed deleted.
func (r *Result) Emptied() bool {
	return r.Status == StatusEmptied
}

// Duration returns how long the scrub ran.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err aggregates the fatal cause, per-version failures and unconfirmed
// versions into one error. It returns nil for an emptied scrub.
func (r *Result) Err() error {
	var merr *multierror.Error

	if r.Cause != nil {
		merr = multierror.Append(merr, r.Cause)
	}
	for _, f := range r.Failures {
		merr = multierror.Append(merr,
			errors.NewBucketError("deleteObjects", r.Bucket, errors.ErrPartialDeletion).
				WithKey(f.Key).
				WithVersion(f.VersionID).
				WithMessage(fmt.Sprintf("%s: %s", f.Code, f.Message)))
	}
	for _, t := range r.UnconfirmedTargets {
		merr = multierror.Append(merr,
			errors.NewBucketError("deleteObjects", r.Bucket, errors.ErrReconciliationMismatch).
				WithKey(t.Key).
				WithVersion(t.VersionID).
				WithMessage("not reported as deleted or failed"))
	}

	return merr.ErrorOrNil()
}

// Plan is the result of a dry run: the delete requests a scrub would send.
type Plan struct {
	RunID  string
	Bucket string
	Prefix string

	// Requests holds one request per listed page, in listing order
	Requests []*s3types.DeletionRequest

	Pages int
	Seen  int
}

// Targets returns the number of versions the plan would delete.
func (p *Plan) Targets() int {
	n := 0
	for _, req := range p.Requests {
		n += len(req.Targets)
	}
	return n
}
