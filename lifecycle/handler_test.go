package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

type scrubCall struct {
	bucket   string
	prefix   string
	opts     int
	deadline time.Time
	hasDL    bool
}

type fakeScrubber struct {
	calls  []scrubCall
	result *scrubber.Result
	err    error
}

func (f *fakeScrubber) Scrub(
	ctx context.Context,
	bucket, prefix string,
	opts ...s3types.ScrubOption,
) (*scrubber.Result, error) {
	dl, ok := ctx.Deadline()
	f.calls = append(f.calls, scrubCall{bucket: bucket, prefix: prefix, opts: len(opts), deadline: dl, hasDL: ok})
	if f.result == nil && f.err == nil {
		return &scrubber.Result{Bucket: bucket, Prefix: prefix, Status: scrubber.StatusEmptied}, nil
	}
	return f.result, f.err
}

func event(rt cfn.RequestType, props map[string]interface{}) cfn.Event {
	return cfn.Event{
		RequestType:        rt,
		RequestID:          "req-1",
		StackID:            "arn:aws:cloudformation:us-east-1:123456789012:stack/test/1",
		LogicalResourceID:  "BucketScrubber",
		PhysicalResourceID: "scrubber-physical-id",
		ResourceProperties: props,
	}
}

func TestHandleActionMapping(t *testing.T) {
	tests := []struct {
		name       string
		request    cfn.RequestType
		action     string
		wantScrub  bool
		wantStatus string
	}{
		{"delete without action", cfn.RequestDelete, "", true, "emptied"},
		{"delete with delete", cfn.RequestDelete, "delete", true, "emptied"},
		{"delete with create", cfn.RequestDelete, "create", false, StatusSkipped},
		{"create without action", cfn.RequestCreate, "", false, StatusSkipped},
		{"create with create", cfn.RequestCreate, "create", true, "emptied"},
		{"update without action", cfn.RequestUpdate, "", false, StatusSkipped},
		{"update with update", cfn.RequestUpdate, "update", true, "emptied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeScrubber{}
			h := NewHandler(fake)

			props := map[string]interface{}{"BucketName": "my-bucket", "ObjectPrefix": "logs/"}
			if tt.action != "" {
				props["Action"] = tt.action
			}

			id, data, err := h.Handle(context.Background(), event(tt.request, props))
			require.NoError(t, err)

			assert.Equal(t, "scrubber-physical-id", id)
			assert.Equal(t, tt.wantStatus, data["Status"])
			if tt.wantScrub {
				require.Len(t, fake.calls, 1)
				assert.Equal(t, "my-bucket", fake.calls[0].bucket)
				assert.Equal(t, "logs/", fake.calls[0].prefix)
			} else {
				assert.Empty(t, fake.calls)
			}
		})
	}
}

func TestHandleMissingBucketName(t *testing.T) {
	fake := &fakeScrubber{}
	logs := testutil.NewLogRecorder()
	h := NewHandler(fake, WithLogger(logs.Logger()))

	id, data, err := h.Handle(context.Background(), event(cfn.RequestDelete, map[string]interface{}{}))
	require.NoError(t, err)

	assert.Equal(t, "scrubber-physical-id", id)
	assert.Equal(t, StatusSkipped, data["Status"])
	assert.Empty(t, fake.calls)
	assert.Len(t, logs.Find("no bucket name specified, ignoring"), 1)
}

func TestHandlePhysicalIDOnCreate(t *testing.T) {
	ev := event(cfn.RequestCreate, map[string]interface{}{"BucketName": "my-bucket"})
	ev.PhysicalResourceID = ""

	id, _, err := NewHandler(&fakeScrubber{}).Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "BucketScrubber", id)
}

func TestHandleUnknownAction(t *testing.T) {
	for _, action := range []string{"none", "Delete", "teardown"} {
		for _, rt := range []cfn.RequestType{cfn.RequestCreate, cfn.RequestUpdate, cfn.RequestDelete} {
			t.Run(action+"/"+string(rt), func(t *testing.T) {
				fake := &fakeScrubber{}
				logs := testutil.NewLogRecorder()

				id, data, err := NewHandler(fake, WithLogger(logs.Logger())).Handle(context.Background(),
					event(rt, map[string]interface{}{"BucketName": "my-bucket", "Action": action}))
				require.NoError(t, err)

				assert.Equal(t, "scrubber-physical-id", id)
				assert.Equal(t, StatusSkipped, data["Status"])
				assert.Empty(t, fake.calls)

				warnings := logs.Find("unknown scrub action, not scrubbing")
				require.Len(t, warnings, 1)
				assert.Equal(t, action, warnings[0].Attr("action"))
			})
		}
	}
}

func TestHandleInvalidFailOnPartial(t *testing.T) {
	fake := &fakeScrubber{result: &scrubber.Result{Bucket: "my-bucket", Status: scrubber.StatusPartial, Errored: 1}}
	logs := testutil.NewLogRecorder()

	_, data, err := NewHandler(fake, WithLogger(logs.Logger())).Handle(context.Background(),
		event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket", "FailOnPartial": "sometimes"}))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "partial", data["Status"])
	assert.Len(t, logs.Find("ignoring invalid resource property"), 1)
}

func TestHandleAbortedScrub(t *testing.T) {
	cause := errors.NewBucketError("listVersions", "my-bucket", errors.ErrBackendRejected)
	fake := &fakeScrubber{
		result: &scrubber.Result{Bucket: "my-bucket", Status: scrubber.StatusAborted, Seen: 3, Deleted: 1},
		err:    cause,
	}

	id, data, err := NewHandler(fake).Handle(context.Background(),
		event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))

	assert.Equal(t, "scrubber-physical-id", id)
	require.ErrorIs(t, err, errors.ErrBackendRejected)
	assert.Equal(t, "aborted", data["Status"])
	assert.Equal(t, 1, data["Deleted"])
}

func TestHandleInvalidBucket(t *testing.T) {
	fake := &fakeScrubber{err: errors.ErrInvalidBucketName}

	_, data, err := NewHandler(fake).Handle(context.Background(),
		event(cfn.RequestDelete, map[string]interface{}{"BucketName": "Bad_Bucket"}))

	require.ErrorIs(t, err, errors.ErrInvalidBucketName)
	assert.Nil(t, data)
}

func TestHandlePartialScrub(t *testing.T) {
	partial := func() *fakeScrubber {
		return &fakeScrubber{result: &scrubber.Result{
			Bucket:      "my-bucket",
			Status:      scrubber.StatusPartial,
			Seen:        10,
			Deleted:     7,
			Errored:     2,
			Unconfirmed: 1,
		}}
	}

	t.Run("succeeds by default", func(t *testing.T) {
		_, data, err := NewHandler(partial()).Handle(context.Background(),
			event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))

		require.NoError(t, err)
		assert.Equal(t, "partial", data["Status"])
		assert.Equal(t, 2, data["Errored"])
		assert.Equal(t, 1, data["Unconfirmed"])
	})

	t.Run("fails when configured", func(t *testing.T) {
		_, data, err := NewHandler(partial(), WithFailOnPartial(true)).Handle(context.Background(),
			event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))

		require.ErrorIs(t, err, errors.ErrPartialDeletion)
		assert.Contains(t, err.Error(), "2 versions failed, 1 unconfirmed")
		assert.Equal(t, "partial", data["Status"])
	})

	t.Run("property overrides handler", func(t *testing.T) {
		_, _, err := NewHandler(partial(), WithFailOnPartial(true)).Handle(context.Background(),
			event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket", "FailOnPartial": "false"}))
		require.NoError(t, err)

		_, _, err = NewHandler(partial()).Handle(context.Background(),
			event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket", "FailOnPartial": "true"}))
		assert.ErrorIs(t, err, errors.ErrPartialDeletion)
	})
}

func TestHandleDeadlineMargin(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	fake := &fakeScrubber{}
	_, _, err := NewHandler(fake, WithDeadlineMargin(time.Minute)).Handle(ctx,
		event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	require.True(t, fake.calls[0].hasDL)
	assert.WithinDuration(t, deadline.Add(-time.Minute), fake.calls[0].deadline, time.Millisecond)

	fake = &fakeScrubber{}
	_, _, err = NewHandler(fake).Handle(context.Background(),
		event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))
	require.NoError(t, err)
	assert.False(t, fake.calls[0].hasDL)
}

func TestHandleScrubOptionsAndRequestID(t *testing.T) {
	fake := &fakeScrubber{}
	logs := testutil.NewLogRecorder()
	h := NewHandler(fake,
		WithLogger(logs.Logger()),
		WithScrubOptions(scrubber.WithPageSize(100), scrubber.WithPageRate(5)),
	)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "aws-req-42"})
	_, _, err := h.Handle(ctx, event(cfn.RequestDelete, map[string]interface{}{"BucketName": "my-bucket"}))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, 2, fake.calls[0].opts)

	entries := logs.Find("scrubbing bucket")
	require.Len(t, entries, 1)
	assert.Equal(t, "aws-req-42", entries[0].Attr("request_id"))
	assert.Equal(t, "Delete", entries[0].Attr("request_type"))
}

func TestHandleScrubsBucket(t *testing.T) {
	bucket := testutil.NewVersionedBucket("my-bucket")
	bucket.PutObjects("logs/", 1500)
	bucket.PutObjects("keep/", 10)

	h := NewHandler(scrubber.NewWithClient(bucket))
	_, data, err := h.Handle(context.Background(), event(cfn.RequestDelete, map[string]interface{}{
		"BucketName":   "my-bucket",
		"ObjectPrefix": "logs/",
	}))
	require.NoError(t, err)

	assert.Equal(t, "emptied", data["Status"])
	assert.Equal(t, 1500, data["Seen"])
	assert.Equal(t, 1500, data["Deleted"])
	assert.NotEmpty(t, data["ScrubId"])
	assert.Zero(t, bucket.Count("logs/"))
	assert.Equal(t, 10, bucket.Count("keep/"))
}
