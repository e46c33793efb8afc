// Package testutil provides test helper functions.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return aws.String(s)
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return aws.Int64(i)
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return aws.Bool(b)
}

// TimePtr returns a pointer to the given time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// GenerateTestBucketName generates a valid test bucket name.
// Bucket names must be DNS-compliant and globally unique.
func GenerateTestBucketName(prefix string) string {
	timestamp := time.Now().Unix()
	random := rand.Int31n(10000)
	name := fmt.Sprintf("%s-%d-%d", prefix, timestamp, random)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// CreateTestObjectVersion creates a test S3 object version structure.
func CreateTestObjectVersion(key, versionID string, size int64, lastModified time.Time) types.ObjectVersion {
	return types.ObjectVersion{
		Key:          StringPtr(key),
		VersionId:    StringPtr(versionID),
		Size:         Int64Ptr(size),
		LastModified: TimePtr(lastModified),
		ETag:         StringPtr(fmt.Sprintf(`"%x"`, key)),
		StorageClass: types.ObjectVersionStorageClassStandard,
		IsLatest:     BoolPtr(true),
	}
}

// CreateTestDeleteMarker creates a test S3 delete marker structure.
func CreateTestDeleteMarker(key, versionID string, lastModified time.Time) types.DeleteMarkerEntry {
	return types.DeleteMarkerEntry{
		Key:          StringPtr(key),
		VersionId:    StringPtr(versionID),
		LastModified: TimePtr(lastModified),
		IsLatest:     BoolPtr(true),
	}
}

// CreateListObjectVersionsOutput creates a test ListObjectVersionsOutput.
// A truncated page continues after its last version.
func CreateListObjectVersionsOutput(
	versions []types.ObjectVersion, markers []types.DeleteMarkerEntry, truncated bool,
) *s3.ListObjectVersionsOutput {
	output := &s3.ListObjectVersionsOutput{
		Versions:      versions,
		DeleteMarkers: markers,
		MaxKeys:       aws.Int32(1000),
		Name:          StringPtr("test-bucket"),
		IsTruncated:   BoolPtr(truncated),
	}
	if truncated && len(versions) > 0 {
		last := versions[len(versions)-1]
		output.NextKeyMarker = last.Key
		output.NextVersionIdMarker = last.VersionId
	}
	return output
}

// LogEntry is one record captured by a LogRecorder.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]slog.Value
}

// Attr returns the string form of an attribute, or "" when absent.
func (e LogEntry) Attr(key string) string {
	if v, ok := e.Attrs[key]; ok {
		return v.String()
	}
	return ""
}

// LogRecorder is a slog.Handler that keeps every record for inspection.
type LogRecorder struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	attrs   []slog.Attr
}

// NewLogRecorder creates an empty LogRecorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{
		mu:      &sync.Mutex{},
		entries: &[]LogEntry{},
	}
}

// Logger returns a logger writing to the recorder.
func (h *LogRecorder) Logger() *slog.Logger {
	return slog.New(h)
}

// Enabled records every level.
func (h *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]slog.Value, r.NumAttrs()+len(h.attrs)),
	}
	for _, a := range h.attrs {
		entry.Attrs[a.Key] = a.Value.Resolve()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[a.Key] = a.Value.Resolve()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.entries = append(*h.entries, entry)
	return nil
}

// WithAttrs returns a handler sharing the recorder that adds attrs to each record.
func (h *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{
		mu:      h.mu,
		entries: h.entries,
		attrs:   append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup ignores groups.
func (h *LogRecorder) WithGroup(string) slog.Handler {
	return h
}

// Entries returns a copy of the captured records.
func (h *LogRecorder) Entries() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogEntry(nil), *h.entries...)
}

// Find returns the captured records with the given message.
func (h *LogRecorder) Find(msg string) []LogEntry {
	var found []LogEntry
	for _, e := range h.Entries() {
		if e.Message == msg {
			found = append(found, e)
		}
	}
	return found
}
