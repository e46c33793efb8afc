package list

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// MaxPageSize is the largest page ListObjectVersions returns.
const MaxPageSize = s3types.MaxBatchSize

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	ListObjectVersions(
		ctx context.Context,
		input *s3.ListObjectVersionsInput,
		opts ...func(*s3.Options),
	) (*s3.ListObjectVersionsOutput, error)
}

// Lister handles listing of object versions.
type Lister struct {
	client S3Interface
}

// New creates a new Lister.
func New(client S3Interface) *Lister {
	return &Lister{
		client: client,
	}
}

// Config holds configuration for a versioned listing.
type Config struct {
	Bucket   string
	Prefix   string
	PageSize int32
	Start    s3types.ContinuationToken
}

// Versions creates a paginator over every version and delete marker under the prefix.
func (l *Lister) Versions(config *Config) *Paginator {
	return &Paginator{
		client:   l.client,
		config:   config,
		pageSize: optimalPageSize(config),
		next:     config.Start,
		first:    true,
	}
}

// Paginator walks a versioned listing forward, one page per call.
type Paginator struct {
	client   S3Interface
	config   *Config
	pageSize int32
	next     s3types.ContinuationToken
	first    bool
	more     bool
	pages    int
}

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.first || p.more
}

// Pages returns the number of pages fetched so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// NextPage fetches the next page of versions.
func (p *Paginator) NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3types.ListingPage, error) {
	if !p.HasMorePages() {
		return nil, s3errors.NewBucketError("listVersions", p.config.Bucket, s3errors.ErrInvalidInput).
			WithMessage("no more pages")
	}

	input := &s3.ListObjectVersionsInput{
		Bucket:  aws.String(p.config.Bucket),
		MaxKeys: aws.Int32(p.pageSize),
	}
	if p.config.Prefix != "" {
		input.Prefix = aws.String(p.config.Prefix)
	}
	if p.next.KeyMarker != "" {
		input.KeyMarker = aws.String(p.next.KeyMarker)
	}
	if p.next.VersionIDMarker != "" {
		input.VersionIdMarker = aws.String(p.next.VersionIDMarker)
	}

	output, err := p.client.ListObjectVersions(ctx, input, optFns...)
	if err != nil {
		return nil, s3errors.NewBucketError("listVersions", p.config.Bucket, s3errors.Classify(err))
	}

	page := convertOutput(output)
	if page.IsTruncated && page.Next.IsZero() {
		return nil, s3errors.NewBucketError("listVersions", p.config.Bucket, s3errors.ErrBackendRejected).
			WithMessage(fmt.Sprintf("page %d truncated without a continuation marker", p.pages+1))
	}

	p.first = false
	p.pages++
	p.more = page.IsTruncated
	p.next = page.Next

	return page, nil
}

// convertOutput converts S3 output to a ListingPage.
func convertOutput(output *s3.ListObjectVersionsOutput) *s3types.ListingPage {
	page := &s3types.ListingPage{
		Records:     make([]s3types.VersionRecord, 0, len(output.Versions)+len(output.DeleteMarkers)),
		IsTruncated: aws.ToBool(output.IsTruncated),
	}

	if page.IsTruncated {
		page.Next = s3types.ContinuationToken{
			KeyMarker:       aws.ToString(output.NextKeyMarker),
			VersionIDMarker: aws.ToString(output.NextVersionIdMarker),
		}
	}

	for _, v := range output.Versions {
		page.Records = append(page.Records, s3types.VersionRecord{
			Key:          aws.ToString(v.Key),
			VersionID:    versionID(v.VersionId),
			Size:         aws.ToInt64(v.Size),
			LastModified: aws.ToTime(v.LastModified),
			IsLatest:     aws.ToBool(v.IsLatest),
			ETag:         aws.ToString(v.ETag),
			StorageClass: string(v.StorageClass),
		})
	}

	for _, m := range output.DeleteMarkers {
		page.Records = append(page.Records, s3types.VersionRecord{
			Key:            aws.ToString(m.Key),
			VersionID:      versionID(m.VersionId),
			LastModified:   aws.ToTime(m.LastModified),
			IsLatest:       aws.ToBool(m.IsLatest),
			IsDeleteMarker: true,
		})
	}

	return page
}

// versionID maps an absent version id to the S3 null version.
func versionID(id *string) string {
	if id == nil || *id == "" {
		return s3types.NullVersionID
	}
	return *id
}

// optimalPageSize clamps the configured page size to the S3 maximum.
func optimalPageSize(config *Config) int32 {
	if config.PageSize > 0 && config.PageSize <= MaxPageSize {
		return config.PageSize
	}
	return MaxPageSize
}
