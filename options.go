// Package scrubber provides functional options for configuring clients and scrubs.
package scrubber

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// WithRegion sets the AWS region.
// If not specified, uses the region from the credential chain, then us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of attempts the SDK makes per call.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithRetryMode sets the SDK retry mode, "standard" or "adaptive".
// Default is "standard".
func WithRetryMode(mode string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RetryMode = mode
	}
}

// WithTimeout sets the HTTP client timeout for individual S3 requests.
// Ignored when a custom HTTP client is provided.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the logger for scrub progress and failures.
// Without it nothing is logged.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithMetricsRegisterer registers scrub metrics with reg. Clients given the
// same registerer share one set of instruments.
func WithMetricsRegisterer(reg prometheus.Registerer) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Registerer = reg
	}
}

// WithPageSize sets the listing page size. Values outside 1..1000 use 1000.
func WithPageSize(size int32) s3types.ScrubOption {
	return func(c *s3types.ScrubOptionConfig) {
		c.PageSize = size
	}
}

// WithCallTimeout bounds each list and delete round trip.
// Default is two minutes; zero or negative disables the bound.
func WithCallTimeout(timeout time.Duration) s3types.ScrubOption {
	return func(c *s3types.ScrubOptionConfig) {
		c.CallTimeout = timeout
	}
}

// WithPageRate limits how many pages per second are listed. Zero means unlimited.
func WithPageRate(pagesPerSecond float64) s3types.ScrubOption {
	return func(c *s3types.ScrubOptionConfig) {
		c.PageRate = pagesPerSecond
	}
}

// WithProgress sets a progress tracker notified after every page.
func WithProgress(tracker s3types.ProgressTracker) s3types.ScrubOption {
	return func(c *s3types.ScrubOptionConfig) {
		c.Progress = tracker
	}
}
