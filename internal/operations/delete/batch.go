package delete

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	DeleteObjects(
		ctx context.Context,
		input *s3.DeleteObjectsInput,
		opts ...func(*s3.Options),
	) (*s3.DeleteObjectsOutput, error)
}

// BatchDeleter turns listed versions into bulk delete calls.
type BatchDeleter struct {
	client       S3Interface
	logger       *slog.Logger
	maxBatchSize int
}

// New creates a new BatchDeleter. A nil logger disables logging.
func New(client S3Interface, logger *slog.Logger) *BatchDeleter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BatchDeleter{
		client:       client,
		logger:       logger,
		maxBatchSize: s3types.MaxBatchSize,
	}
}

// BuildRequests maps listed records to deletion requests of at most 1000 targets.
// A page from a compliant backend yields exactly one request. Duplicate targets
// are collapsed. No S3 call is made.
func (b *BatchDeleter) BuildRequests(
	ctx context.Context,
	bucket string,
	records []s3types.VersionRecord,
) []*s3types.DeletionRequest {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[s3types.Target]struct{}, len(records))
	targets := make([]s3types.Target, 0, len(records))
	for _, record := range records {
		b.logger.DebugContext(ctx, "scheduling version for deletion", "record", record)

		target := record.Target()
		if _, dup := seen[target]; dup {
			b.logger.WarnContext(ctx, "duplicate version in listing",
				"key", target.Key,
				"version_id", target.VersionID)
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}

	requests := make([]*s3types.DeletionRequest, 0, (len(targets)+b.maxBatchSize-1)/b.maxBatchSize)
	for _, chunk := range splitIntoBatches(targets, b.maxBatchSize) {
		requests = append(requests, &s3types.DeletionRequest{
			Bucket:  bucket,
			Targets: chunk,
		})
	}

	return requests
}

// Delete issues one verbose DeleteObjects call for the request.
// A failure of the call itself is returned classified; per-target failures
// are returned in the outcome.
func (b *BatchDeleter) Delete(
	ctx context.Context,
	req *s3types.DeletionRequest,
	optFns ...func(*s3.Options),
) (*s3types.DeletionOutcome, error) {
	if len(req.Targets) == 0 {
		return &s3types.DeletionOutcome{}, nil
	}
	if len(req.Targets) > b.maxBatchSize {
		return nil, s3errors.NewBucketError("deleteObjects", req.Bucket, s3errors.ErrInvalidInput).
			WithMessage("too many targets: maximum is 1000 per request")
	}

	objects := make([]types.ObjectIdentifier, 0, len(req.Targets))
	for _, target := range req.Targets {
		objects = append(objects, types.ObjectIdentifier{
			Key:       aws.String(target.Key),
			VersionId: aws.String(target.VersionID),
		})
	}

	input := &s3.DeleteObjectsInput{
		Bucket: aws.String(req.Bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(false), // Verbose: report every deleted version
		},
	}

	start := time.Now()
	output, err := b.client.DeleteObjects(ctx, input, optFns...)
	if err != nil {
		return nil, s3errors.NewBucketError("deleteObjects", req.Bucket, s3errors.Classify(err))
	}

	outcome := convertOutput(output)
	outcome.Duration = time.Since(start)
	return outcome, nil
}

// Reconcile compares an outcome against the request it answers.
func Reconcile(req *s3types.DeletionRequest, outcome *s3types.DeletionOutcome) *s3types.Reconciliation {
	rec := &s3types.Reconciliation{
		Requested: len(req.Targets),
	}

	pending := make(map[s3types.Target]struct{}, len(req.Targets))
	for _, target := range req.Targets {
		pending[target] = struct{}{}
	}

	for _, target := range outcome.Deleted {
		if _, ok := pending[target]; !ok {
			rec.Unexpected = append(rec.Unexpected, target)
			continue
		}
		delete(pending, target)
		rec.Deleted = append(rec.Deleted, target)
	}

	for _, e := range outcome.Errors {
		target := e.Target()
		if _, ok := pending[target]; !ok {
			rec.Unexpected = append(rec.Unexpected, target)
			continue
		}
		delete(pending, target)
		rec.Errors = append(rec.Errors, e)
	}

	// Preserve request order for reproducible logs.
	for _, target := range req.Targets {
		if _, ok := pending[target]; ok {
			rec.Missing = append(rec.Missing, target)
		}
	}

	return rec
}

// convertOutput converts S3 output to a DeletionOutcome.
func convertOutput(output *s3.DeleteObjectsOutput) *s3types.DeletionOutcome {
	outcome := &s3types.DeletionOutcome{
		Deleted: make([]s3types.Target, 0, len(output.Deleted)),
		Errors:  make([]s3types.DeleteError, 0, len(output.Errors)),
	}

	for _, deleted := range output.Deleted {
		outcome.Deleted = append(outcome.Deleted, s3types.Target{
			Key:       aws.ToString(deleted.Key),
			VersionID: versionID(deleted.VersionId),
		})
	}

	for _, e := range output.Errors {
		outcome.Errors = append(outcome.Errors, s3types.DeleteError{
			Key:       aws.ToString(e.Key),
			VersionID: versionID(e.VersionId),
			Code:      aws.ToString(e.Code),
			Message:   aws.ToString(e.Message),
		})
	}

	return outcome
}

func versionID(id *string) string {
	if id == nil || *id == "" {
		return s3types.NullVersionID
	}
	return *id
}

// splitIntoBatches splits a slice into batches of specified size.
func splitIntoBatches(targets []s3types.Target, batchSize int) [][]s3types.Target {
	batches := make([][]s3types.Target, 0, (len(targets)+batchSize-1)/batchSize)

	for i := 0; i < len(targets); i += batchSize {
		end := min(i+batchSize, len(targets))
		batches = append(batches, targets[i:end])
	}

	return batches
}
