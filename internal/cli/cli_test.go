package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/report"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

const testBucket = "test-bucket"

type testApp struct {
	*App
	out    *bytes.Buffer
	errOut *bytes.Buffer
	config *s3types.ClientConfig
}

func newTestApp(bucket *testutil.VersionedBucket) *testApp {
	ta := &testApp{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		config: &s3types.ClientConfig{},
	}
	ta.App = New(ta.out, ta.errOut)
	ta.NewClient = func(opts ...s3types.Option) (*scrubber.Client, error) {
		for _, opt := range opts {
			opt(ta.config)
		}
		return scrubber.NewWithClient(bucket, opts...), nil
	}
	return ta
}

func (ta *testApp) run(args ...string) int {
	return ta.Run(context.Background(), args)
}

func TestScrubCommand(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("logs/", 1500)
	bucket.PutObjects("keep/", 3)

	app := newTestApp(bucket)
	code := app.run("scrub", testBucket, "logs/")

	assert.Equal(t, ExitOK, code, app.errOut.String())
	assert.Contains(t, app.out.String(),
		"s3://test-bucket/logs/: status=emptied pages=2 delete_calls=2 seen=1500 deleted=1500 errors=0 unconfirmed=0")
	assert.Zero(t, bucket.Count("logs/"))
	assert.Equal(t, 3, bucket.Count("keep/"))
}

func TestScrubCommandWholeBucket(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("a/", 5)
	bucket.PutObjects("b/", 5)

	app := newTestApp(bucket)
	require.Equal(t, ExitOK, app.run("scrub", testBucket))

	assert.Contains(t, app.out.String(), "s3://test-bucket: status=emptied")
	assert.Zero(t, bucket.Len())
}

func TestScrubCommandPartial(t *testing.T) {
	newBucket := func() *testutil.VersionedBucket {
		bucket := testutil.NewVersionedBucket(testBucket)
		bucket.PutObjects("logs/", 10)
		bucket.FailKeys["logs/00003"] = "AccessDenied"
		return bucket
	}

	t.Run("exits partial", func(t *testing.T) {
		app := newTestApp(newBucket())
		code := app.run("scrub", testBucket, "logs/")

		assert.Equal(t, ExitPartial, code)
		assert.Contains(t, app.out.String(), "status=partial")
		assert.Contains(t, app.out.String(), "failed\tlogs/00003")
		assert.Contains(t, app.errOut.String(), "1 versions failed, 0 unconfirmed")
	})

	t.Run("allow partial", func(t *testing.T) {
		app := newTestApp(newBucket())
		assert.Equal(t, ExitOK, app.run("scrub", testBucket, "logs/", "--allow-partial"))
	})
}

func TestScrubCommandReport(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("logs/", 10)
	bucket.FailKeys["logs/00001"] = "AccessDenied"
	bucket.DropKeys["logs/00002"] = true

	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "scrub.json")

	app := newTestApp(bucket)
	code := app.run("scrub", testBucket, "logs/", "--report", path)
	assert.Equal(t, ExitPartial, code)

	rep, err := report.NewOSWriter(filepath.Join(dir, "reports")).Read("scrub.json")
	require.NoError(t, err)

	assert.Equal(t, "partial", rep.Status)
	assert.Equal(t, testBucket, rep.Bucket)
	assert.Equal(t, 10, rep.Seen)
	assert.Equal(t, 8, rep.Deleted)
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, report.ReasonError, rep.Entries[0].Reason)
	assert.Equal(t, "logs/00001", rep.Entries[0].Key)
	assert.Equal(t, report.ReasonUnconfirmed, rep.Entries[1].Reason)
	assert.Equal(t, "logs/00002", rep.Entries[1].Key)
}

func TestScrubCommandAborted(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("logs/", 10)
	bucket.ListHook = func(int, *s3.ListObjectVersionsInput) error {
		return &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	}

	app := newTestApp(bucket)
	code := app.run("scrub", testBucket)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, app.out.String(), "status=aborted")
	assert.Contains(t, app.errOut.String(), "Error:")
	assert.Contains(t, app.errOut.String(), "AccessDenied")
	assert.Equal(t, 10, bucket.Len())
}

func TestScrubCommandArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing bucket", []string{"scrub"}, "accepts between 1 and 2 arg(s)"},
		{"too many args", []string{"scrub", "a-bucket", "p/", "extra"}, "accepts between 1 and 2 arg(s)"},
		{"invalid bucket", []string{"scrub", "Bad_Bucket"}, "bucket name"},
		{"unknown retry mode", []string{"scrub", testBucket, "--retry-mode", "eager"}, ""},
		{"bad log level", []string{"scrub", testBucket, "--log-level", "loud"}, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(testutil.NewVersionedBucket(testBucket))
			app.NewClient = func(opts ...s3types.Option) (*scrubber.Client, error) {
				cfg := &s3types.ClientConfig{}
				for _, opt := range opts {
					opt(cfg)
				}
				if cfg.RetryMode != scrubber.RetryModeStandard && cfg.RetryMode != scrubber.RetryModeAdaptive {
					return nil, io.ErrUnexpectedEOF
				}
				return scrubber.NewWithClient(testutil.NewVersionedBucket(testBucket), opts...), nil
			}

			assert.Equal(t, ExitFailure, app.run(tt.args...))
			assert.Contains(t, app.errOut.String(), tt.want)
		})
	}
}

func TestScrubCommandClientOptions(t *testing.T) {
	app := newTestApp(testutil.NewVersionedBucket(testBucket))
	code := app.run("scrub", testBucket,
		"--region", "eu-west-1",
		"--endpoint", "http://localhost:4566",
		"--path-style",
		"--max-retries", "7",
		"--retry-mode", "adaptive",
		"--http-timeout", "45s",
	)
	require.Equal(t, ExitOK, code, app.errOut.String())

	assert.Equal(t, "eu-west-1", app.config.Region)
	assert.Equal(t, "http://localhost:4566", app.config.Endpoint)
	assert.True(t, app.config.ForcePathStyle)
	assert.Equal(t, 7, app.config.MaxRetries)
	assert.Equal(t, scrubber.RetryModeAdaptive, app.config.RetryMode)
	assert.Equal(t, 45*time.Second, app.config.Timeout)
	assert.NotNil(t, app.config.Logger)
	assert.NotNil(t, app.config.Registerer)
}

func TestConfigPrecedence(t *testing.T) {
	newBucket := func() *testutil.VersionedBucket {
		bucket := testutil.NewVersionedBucket(testBucket)
		bucket.PutObjects("", 25)
		return bucket
	}

	t.Run("default", func(t *testing.T) {
		bucket := newBucket()
		require.Equal(t, ExitOK, newTestApp(bucket).run("scrub", testBucket))
		assert.Equal(t, 1, bucket.DeleteCalls())
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scrubber.yaml")
		require.NoError(t, os.WriteFile(path, []byte("page-size: 20\nregion: ap-south-1\n"), 0o600))

		bucket := newBucket()
		app := newTestApp(bucket)
		require.Equal(t, ExitOK, app.run("scrub", testBucket, "--config", path), app.errOut.String())
		assert.Equal(t, 2, bucket.DeleteCalls())
		assert.Equal(t, "ap-south-1", app.config.Region)
	})

	t.Run("env over config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scrubber.yaml")
		require.NoError(t, os.WriteFile(path, []byte("page-size: 20\n"), 0o600))
		t.Setenv("BUCKETSCRUBBER_PAGE_SIZE", "10")

		bucket := newBucket()
		require.Equal(t, ExitOK, newTestApp(bucket).run("scrub", testBucket, "--config", path))
		assert.Equal(t, 3, bucket.DeleteCalls())
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("BUCKETSCRUBBER_PAGE_SIZE", "10")

		bucket := newBucket()
		require.Equal(t, ExitOK, newTestApp(bucket).run("scrub", testBucket, "--page-size", "5"))
		assert.Equal(t, 5, bucket.DeleteCalls())
	})

	t.Run("missing config file", func(t *testing.T) {
		app := newTestApp(newBucket())
		assert.Equal(t, ExitFailure, app.run("scrub", testBucket, "--config", "/does/not/exist.yaml"))
		assert.Contains(t, app.errOut.String(), "reading config")
	})
}

func TestScrubCommandProgressAndLogs(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("", 30)

	app := newTestApp(bucket)
	code := app.run("scrub", testBucket, "--page-size", "10", "--progress", "--log-format", "json")
	require.Equal(t, ExitOK, code, app.errOut.String())

	stderr := app.errOut.String()
	assert.Contains(t, stderr, "page 1: records=10 deleted=10 errored=0 unconfirmed=0")
	assert.Contains(t, stderr, "page 3: records=10 deleted=10 errored=0 unconfirmed=0")
	assert.Contains(t, stderr, `"msg":"scrub finished"`)
	assert.Contains(t, stderr, `"bucket":"test-bucket"`)
}

func TestScrubCommandPushgateway(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("", 5)

	app := newTestApp(bucket)
	require.Equal(t, ExitOK, app.run("scrub", testBucket, "--pushgateway", server.URL))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/bucketscrubber/bucket/test-bucket", path)
	assert.NotEmpty(t, body)
}

func TestPlanCommand(t *testing.T) {
	bucket := testutil.NewVersionedBucket(testBucket)
	bucket.PutObjects("logs/", 3)
	bucket.PutDeleteMarker("logs/00000")

	app := newTestApp(bucket)
	require.Equal(t, ExitOK, app.run("plan", testBucket, "logs/", "--targets"), app.errOut.String())

	out := app.out.String()
	assert.Contains(t, out, "s3://test-bucket/logs/: pages=1 seen=4 requests=1 targets=4")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "logs/00000\t"))
	assert.Equal(t, 4, bucket.Len())
	assert.Zero(t, bucket.DeleteCalls())
}

func TestVersionCommand(t *testing.T) {
	app := newTestApp(testutil.NewVersionedBucket(testBucket))
	require.Equal(t, ExitOK, app.run("version"))

	assert.Contains(t, app.out.String(), "bucketscrubber dev")
	assert.Contains(t, app.out.String(), "Go version:")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"text info", "info", "text", false},
		{"json debug", "debug", "json", false},
		{"default format", "warn", "", false},
		{"uppercase", "ERROR", "JSON", false},
		{"bad level", "chatty", "text", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Error("hello")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}
