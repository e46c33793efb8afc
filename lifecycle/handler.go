package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// StatusSkipped is reported when an event does not run a scrub.
const StatusSkipped = "skipped"

// DefaultDeadlineMargin is kept free before the Lambda deadline so the
// custom resource response can still be sent.
const DefaultDeadlineMargin = 10 * time.Second

// Scrubber runs a scrub. *scrubber.Client satisfies it.
type Scrubber interface {
	Scrub(ctx context.Context, bucket, prefix string, opts ...s3types.ScrubOption) (*scrubber.Result, error)
}

var _ Scrubber = (*scrubber.Client)(nil)

// Handler answers CloudFormation custom resource events.
type Handler struct {
	scrubber       Scrubber
	logger         *slog.Logger
	failOnPartial  bool
	deadlineMargin time.Duration
	scrubOpts      []s3types.ScrubOption
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithFailOnPartial fails the resource when a scrub leaves versions behind.
// The FailOnPartial resource property overrides it per resource.
func WithFailOnPartial(fail bool) Option {
	return func(h *Handler) {
		h.failOnPartial = fail
	}
}

// WithDeadlineMargin sets how long before the invocation deadline the scrub must stop.
func WithDeadlineMargin(margin time.Duration) Option {
	return func(h *Handler) {
		h.deadlineMargin = margin
	}
}

// WithScrubOptions passes options to every scrub.
func WithScrubOptions(opts ...s3types.ScrubOption) Option {
	return func(h *Handler) {
		h.scrubOpts = append(h.scrubOpts, opts...)
	}
}

// NewHandler creates a Handler running scrubs on s.
func NewHandler(s Scrubber, opts ...Option) *Handler {
	h := &Handler{
		scrubber:       s,
		deadlineMargin: DefaultDeadlineMargin,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Start serves the handler as a Lambda function. It does not return.
func (h *Handler) Start() {
	lambda.Start(cfn.LambdaWrap(h.Handle))
}

// Handle processes one custom resource event. It matches cfn.CustomResourceFunction.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	physicalID := event.PhysicalResourceID
	if physicalID == "" {
		physicalID = event.LogicalResourceID
	}

	logger := h.logger.With(
		"request_type", string(event.RequestType),
		"logical_resource_id", event.LogicalResourceID,
		"stack_id", event.StackID,
	)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
	}

	// Property problems are logged and never fail the resource.
	props, err := ParseProperties(event.ResourceProperties)
	if err != nil {
		logger.WarnContext(ctx, "ignoring invalid resource property", "error", err)
	}
	if !props.Action.Known() {
		logger.WarnContext(ctx, "unknown scrub action, not scrubbing",
			"action", string(props.Action))
		return physicalID, skipped(), nil
	}

	requested := ActionFor(event.RequestType)
	if !ShouldScrub(requested, props.Action) {
		logger.InfoContext(ctx, "scrub not configured for this request",
			"action", string(props.Action))
		return physicalID, skipped(), nil
	}
	if props.BucketName == "" {
		logger.InfoContext(ctx, "no bucket name specified, ignoring")
		return physicalID, skipped(), nil
	}

	if deadline, ok := ctx.Deadline(); ok && h.deadlineMargin > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-h.deadlineMargin))
		defer cancel()
	}

	logger.InfoContext(ctx, "scrubbing bucket",
		"bucket", props.BucketName,
		"prefix", props.ObjectPrefix)

	res, err := h.scrubber.Scrub(ctx, props.BucketName, props.ObjectPrefix, h.scrubOpts...)
	if err != nil {
		logger.ErrorContext(ctx, "scrub failed",
			"bucket", props.BucketName,
			"kind", errors.KindOf(err),
			"error", err)
		if res == nil {
			return physicalID, nil, err
		}
		return physicalID, resultData(res), err
	}

	failOnPartial := h.failOnPartial
	if props.FailOnPartial != nil {
		failOnPartial = *props.FailOnPartial
	}
	if res.Status == scrubber.StatusPartial && failOnPartial {
		// The full failure list goes to the log; the response reason stays short.
		logger.ErrorContext(ctx, "scrub left versions behind", "error", res.Err())
		return physicalID, resultData(res), errors.NewBucketError("scrub", res.Bucket, errors.ErrPartialDeletion).
			WithMessage(fmt.Sprintf("%d versions failed, %d unconfirmed", res.Errored, res.Unconfirmed))
	}

	return physicalID, resultData(res), nil
}

func skipped() map[string]interface{} {
	return map[string]interface{}{"Status": StatusSkipped}
}

func resultData(res *scrubber.Result) map[string]interface{} {
	return map[string]interface{}{
		"Status":      string(res.Status),
		"ScrubId":     res.RunID,
		"Seen":        res.Seen,
		"Deleted":     res.Deleted,
		"Errored":     res.Errored,
		"Unconfirmed": res.Unconfirmed,
	}
}
