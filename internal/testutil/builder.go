// Package testutil provides a builder for creating mock S3 clients.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ErrConnectionRefused stands in for a transport failure with no API response.
var ErrConnectionRefused = errors.New("dial tcp 127.0.0.1:443: connect: connection refused")

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithListObjectVersions configures the ListObjectVersions behavior.
func (b *MockBuilder) WithListObjectVersions(
	fn func(context.Context, *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error),
) *MockBuilder {
	b.client.ListObjectVersionsFunc = func(ctx context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithDeleteObjects configures the DeleteObjects behavior.
func (b *MockBuilder) WithDeleteObjects(
	fn func(context.Context, *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error),
) *MockBuilder {
	b.client.DeleteObjectsFunc = func(ctx context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithPages serves the given listing outputs in order, one per call.
// Calls beyond the last output fail.
func (b *MockBuilder) WithPages(pages ...*s3.ListObjectVersionsOutput) *MockBuilder {
	var mu sync.Mutex
	next := 0
	return b.WithListObjectVersions(func(_ context.Context, _ *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(pages) {
			return nil, fmt.Errorf("unexpected listing call %d", next+1)
		}
		page := pages[next]
		next++
		return page, nil
	})
}

// WithDeleteAll confirms every requested target as deleted.
func (b *MockBuilder) WithDeleteAll() *MockBuilder {
	return b.WithDeleteObjects(func(_ context.Context, params *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error) {
		output := &s3.DeleteObjectsOutput{}
		for _, obj := range params.Delete.Objects {
			output.Deleted = append(output.Deleted, types.DeletedObject{
				Key:       obj.Key,
				VersionId: obj.VersionId,
			})
		}
		return output, nil
	})
}

// WithAccessDenied configures the mock to return access denied API errors.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	accessDeniedErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}

	b.client.ListObjectVersionsFunc = func(ctx context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.DeleteObjectsFunc = func(ctx context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return nil, accessDeniedErr
	}

	return b
}

// WithNetworkError configures the mock to fail every call at the transport level.
func (b *MockBuilder) WithNetworkError() *MockBuilder {
	b.client.ListObjectVersionsFunc = func(ctx context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
		return nil, ErrConnectionRefused
	}
	b.client.DeleteObjectsFunc = func(ctx context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return nil, ErrConnectionRefused
	}

	return b
}
