package scrubber

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	deleteop "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/operations/delete"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// DefaultCallTimeout bounds each list and delete round trip unless overridden.
const DefaultCallTimeout = 2 * time.Minute

// Scrub deletes every version and delete marker in bucket whose key starts
// with prefix. An empty prefix scrubs the whole bucket.
//
// Pages are listed and deleted one at a time. A page's delete call always
// runs to completion and is reconciled, even if ctx is cancelled meanwhile;
// cancellation takes effect before the next listing call.
//
// A scrub that reaches the last page returns a nil error with Status
// StatusEmptied or StatusPartial; Result.Err describes what a partial scrub
// left behind. A scrub stopped by a backend failure or by ctx returns its
// Result with StatusAborted together with the fatal error. Invalid arguments
// return a nil Result.
func (c *Client) Scrub(
	ctx context.Context,
	bucket, prefix string,
	opts ...s3types.ScrubOption,
) (*Result, error) {
	if err := validateTarget(bucket, prefix); err != nil {
		return nil, err
	}

	r := c.newRun(bucket, prefix, opts)
	return r.scrub(ctx)
}

// Plan lists bucket like Scrub and returns the delete requests it would send,
// without deleting anything.
func (c *Client) Plan(
	ctx context.Context,
	bucket, prefix string,
	opts ...s3types.ScrubOption,
) (*Plan, error) {
	if err := validateTarget(bucket, prefix); err != nil {
		return nil, err
	}

	r := c.newRun(bucket, prefix, opts)
	return r.plan(ctx)
}

func validateTarget(bucket, prefix string) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return err
	}
	return validation.ValidatePrefix(prefix)
}

// run is the state of one scrub or plan.
type run struct {
	client    *Client
	config    *s3types.ScrubOptionConfig
	logger    *slog.Logger
	paginator *list.Paginator
	deleter   *deleteop.BatchDeleter
	limiter   *rate.Limiter
	result    *Result
}

func (c *Client) newRun(bucket, prefix string, opts []s3types.ScrubOption) *run {
	cfg := &s3types.ScrubOptionConfig{
		PageSize:    list.MaxPageSize,
		CallTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	id := uuid.NewString()
	logger := c.logger.With(
		"scrub_id", id,
		"bucket", bucket,
		"prefix", prefix,
	)

	r := &run{
		client: c,
		config: cfg,
		logger: logger,
		paginator: list.New(c.api).Versions(&list.Config{
			Bucket:   bucket,
			Prefix:   prefix,
			PageSize: cfg.PageSize,
		}),
		deleter: deleteop.New(c.api, logger),
		result: &Result{
			RunID:     id,
			Bucket:    bucket,
			Prefix:    prefix,
			State:     StateListing,
			StartedAt: time.Now(),
		},
	}
	if cfg.PageRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.PageRate), 1)
	}
	return r
}

func (r *run) scrub(ctx context.Context) (*Result, error) {
	r.logger.InfoContext(ctx, "scrub started")

	var page *s3types.ListingPage
	for r.result.State != StateDone {
		switch r.result.State {
		case StateListing:
			var err error
			page, err = r.nextPage(ctx)
			if err != nil {
				return r.abort(ctx, err)
			}
			r.result.State = StateDeleting

		case StateDeleting:
			if len(page.Records) > 0 {
				if err := r.deletePage(ctx, page); err != nil {
					return r.abort(ctx, err)
				}
			}
			// The next listing resumes from this page's token, held by the paginator.
			if page.IsTruncated {
				r.result.State = StateListing
			} else {
				r.result.State = StateDone
			}
		}
	}

	return r.finish(ctx), nil
}

// nextPage waits for the page limiter and lists one page.
// It is the only place a scrub observes cancellation.
func (r *run) nextPage(ctx context.Context) (*s3types.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.aborted(err)
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, r.aborted(err)
		}
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	page, err := r.paginator.NextPage(callCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.aborted(ctx.Err())
		}
		return nil, err
	}

	// Empty pages are not counted, so an empty bucket scrubs in zero pages.
	if len(page.Records) > 0 {
		r.result.Pages++
	}
	r.result.Seen += len(page.Records)
	r.client.metrics.PageListed(len(page.Records))
	r.logger.DebugContext(ctx, "page listed",
		"page", r.result.Pages,
		"listing_calls", r.paginator.Pages(),
		"records", len(page.Records),
		"truncated", page.IsTruncated)

	return page, nil
}

// deletePage deletes one page and folds the reconciled outcome into the result.
// Only a failure of a delete call itself is returned.
func (r *run) deletePage(ctx context.Context, page *s3types.ListingPage) error {
	report := s3types.PageReport{
		Page:    r.result.Pages,
		Records: len(page.Records),
	}

	for _, req := range r.deleter.BuildRequests(ctx, r.result.Bucket, page.Records) {
		rec, err := r.deleteRequest(ctx, req)
		if err != nil {
			return err
		}
		report.Deleted += len(rec.Deleted)
		report.Errored += len(rec.Errors)
		report.Unconfirmed += len(rec.Missing)
	}

	r.logger.InfoContext(ctx, "page scrubbed",
		"page", report.Page,
		"records", report.Records,
		"deleted", report.Deleted,
		"errored", report.Errored,
		"unconfirmed", report.Unconfirmed)
	if r.config.Progress != nil {
		r.config.Progress.PageDone(report)
	}

	return nil
}

// deleteRequest sends one bulk delete detached from ctx cancellation, so an
// issued delete is always reconciled.
func (r *run) deleteRequest(ctx context.Context, req *s3types.DeletionRequest) (*s3types.Reconciliation, error) {
	callCtx, cancel := r.callContext(context.WithoutCancel(ctx))
	defer cancel()

	r.result.DeleteCalls++
	outcome, err := r.deleter.Delete(callCtx, req)
	if err != nil {
		return nil, err
	}

	rec := deleteop.Reconcile(req, outcome)
	r.result.Deleted += len(rec.Deleted)
	r.result.Errored += len(rec.Errors)
	r.result.Failures = append(r.result.Failures, rec.Errors...)

	codes := make([]string, 0, len(rec.Errors))
	for _, e := range rec.Errors {
		codes = append(codes, e.Code)
		r.logger.WarnContext(ctx, "version not deleted",
			"key", e.Key,
			"version_id", e.VersionID,
			"code", e.Code,
			"message", e.Message)
	}

	if !rec.Consistent() {
		r.result.Mismatches++
		r.result.Unconfirmed += len(rec.Missing)
		r.result.UnconfirmedTargets = append(r.result.UnconfirmedTargets, rec.Missing...)
		r.client.metrics.Mismatch()
		r.logger.WarnContext(ctx, "delete report does not match request",
			"requested", rec.Requested,
			"deleted", len(rec.Deleted),
			"errored", len(rec.Errors),
			"missing", len(rec.Missing),
			"unexpected", len(rec.Unexpected))
		for _, t := range rec.Missing {
			r.logger.WarnContext(ctx, "version missing from delete report",
				"key", t.Key,
				"version_id", t.VersionID)
		}
	}

	r.client.metrics.DeleteCall(outcome.Duration, len(rec.Deleted), codes, len(rec.Missing))
	return rec, nil
}

func (r *run) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.config.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *run) aborted(cause error) error {
	return errors.NewBucketError("scrub", r.result.Bucket, fmt.Errorf("%w: %w", errors.ErrAborted, cause))
}

func (r *run) finish(ctx context.Context) *Result {
	res := r.result
	res.FinishedAt = time.Now()
	res.Status = StatusEmptied
	if res.Errored > 0 || res.Unconfirmed > 0 {
		res.Status = StatusPartial
	}

	level := slog.LevelInfo
	if res.Status == StatusPartial {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "scrub finished",
		"status", res.Status,
		"pages", res.Pages,
		"delete_calls", res.DeleteCalls,
		"seen", res.Seen,
		"deleted", res.Deleted,
		"errored", res.Errored,
		"unconfirmed", res.Unconfirmed,
		"duration", res.Duration())

	r.client.metrics.ScrubFinished(string(res.Status))
	if r.config.Progress != nil {
		r.config.Progress.Complete()
	}
	return res
}

func (r *run) abort(ctx context.Context, err error) (*Result, error) {
	res := r.result
	res.FinishedAt = time.Now()
	res.Status = StatusAborted
	res.Cause = err

	r.logger.ErrorContext(ctx, "scrub aborted",
		"state", res.State.String(),
		"kind", errors.KindOf(err),
		"pages", res.Pages,
		"seen", res.Seen,
		"deleted", res.Deleted,
		"error", err)

	r.client.metrics.ScrubFinished(string(res.Status))
	if r.config.Progress != nil {
		r.config.Progress.Error(err)
	}
	return res, err
}

func (r *run) plan(ctx context.Context) (*Plan, error) {
	p := &Plan{
		RunID:  r.result.RunID,
		Bucket: r.result.Bucket,
		Prefix: r.result.Prefix,
	}

	for r.paginator.HasMorePages() {
		page, err := r.nextPage(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "plan aborted", "kind", errors.KindOf(err), "error", err)
			return nil, err
		}
		p.Requests = append(p.Requests, r.deleter.BuildRequests(ctx, p.Bucket, page.Records)...)
	}

	p.Pages = r.result.Pages
	p.Seen = r.result.Seen
	r.logger.InfoContext(ctx, "plan built",
		"pages", p.Pages,
		"seen", p.Seen,
		"requests", len(p.Requests),
		"targets", p.Targets())
	return p, nil
}
