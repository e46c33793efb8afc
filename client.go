package scrubber

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// Retry modes accepted by WithRetryMode.
const (
	RetryModeStandard = "standard"
	RetryModeAdaptive = "adaptive"
)

// Client scrubs buckets through a shared S3 client.
// It is safe for concurrent use by multiple scrubs.
type Client struct {
	// api is the S3 client used for listing and deleting
	api s3api.S3API

	// config holds the AWS configuration
	config aws.Config

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a new scrubber client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := scrubber.New(
//	    scrubber.WithRegion("us-west-2"),
//	    scrubber.WithRetryMode(scrubber.RetryModeAdaptive),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := &s3types.ClientConfig{
		MaxRetries: 3,
		RetryMode:  RetryModeStandard,
	}

	for _, opt := range opts {
		opt(clientCfg)
	}

	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	retryer, err := newRetryer(clientCfg.RetryMode, clientCfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	cfg.Retryer = retryer

	var s3Opts []func(*s3.Options)

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	client := newClient(s3.NewFromConfig(cfg, s3Opts...), clientCfg)
	client.config = cfg
	return client, nil
}

// NewWithClient creates a scrubber client on a custom S3API implementation.
// This is primarily used for testing with mocked clients. Only the logger and
// metrics options apply.
func NewWithClient(api s3api.S3API, opts ...s3types.Option) *Client {
	clientCfg := &s3types.ClientConfig{}
	for _, opt := range opts {
		opt(clientCfg)
	}
	return newClient(api, clientCfg)
}

func newClient(api s3api.S3API, cfg *s3types.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		api:     api,
		logger:  logger,
		metrics: metrics.New(cfg.Registerer),
	}
}

// Region returns the AWS region the client was configured with.
func (c *Client) Region() string {
	return c.config.Region
}

// newRetryer builds the SDK retryer for mode. maxRetries counts attempts,
// including the first; zero keeps the SDK default.
func newRetryer(mode string, maxRetries int) (func() aws.Retryer, error) {
	standard := func(o *retry.StandardOptions) {
		if maxRetries > 0 {
			o.MaxAttempts = maxRetries
		}
	}

	switch mode {
	case "", RetryModeStandard:
		return func() aws.Retryer {
			return retry.NewStandard(standard)
		}, nil
	case RetryModeAdaptive:
		return func() aws.Retryer {
			return retry.NewAdaptiveMode(func(o *retry.AdaptiveModeOptions) {
				o.StandardOptions = append(o.StandardOptions, standard)
			})
		}, nil
	default:
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unknown retry mode %q", mode))
	}
}
