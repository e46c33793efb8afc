// Package testutil provides an in-memory versioned bucket.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

var _ s3api.S3API = (*VersionedBucket)(nil)

type bucketEntry struct {
	key          string
	versionID    string
	seq          int64
	size         int64
	deleteMarker bool
	modified     time.Time
}

// VersionedBucket is an in-memory S3 bucket with versioning enabled.
// It answers ListObjectVersions and DeleteObjects the way S3 does: entries are
// ordered by key, newest version first, and pagination resumes strictly after
// the key and version markers.
type VersionedBucket struct {
	// FailKeys maps keys to the error code DeleteObjects reports for every version of them.
	FailKeys map[string]string

	// DropKeys lists keys DeleteObjects neither deletes nor reports.
	DropKeys map[string]bool

	// ListHook, when set, can fail a listing call. Calls are numbered from 1.
	ListHook func(call int, input *s3.ListObjectVersionsInput) error

	// DeleteHook, when set, can fail a delete call. Calls are numbered from 1.
	DeleteHook func(call int, input *s3.DeleteObjectsInput) error

	mu          sync.Mutex
	name        string
	entries     []bucketEntry
	issued      map[s3types.Target]int64
	seq         int64
	clock       time.Time
	listCalls   int
	deleteCalls int
	inFlight    int
	maxInFlight int
	deleteSizes []int
}

// NewVersionedBucket creates an empty versioned bucket.
func NewVersionedBucket(name string) *VersionedBucket {
	return &VersionedBucket{
		FailKeys: make(map[string]string),
		DropKeys: make(map[string]bool),
		issued:   make(map[s3types.Target]int64),
		name:     name,
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Name returns the bucket name.
func (b *VersionedBucket) Name() string {
	return b.name
}

// PutObject writes a new version of key and returns its version id.
func (b *VersionedBucket) PutObject(key string, size int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(key, size, false, "")
}

// PutDeleteMarker places a delete marker on key and returns its version id.
func (b *VersionedBucket) PutDeleteMarker(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(key, 0, true, "")
}

// PutNullVersion writes a version with the null version id, as S3 does for
// objects written before versioning was enabled.
func (b *VersionedBucket) PutNullVersion(key string, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insert(key, size, false, s3types.NullVersionID)
}

// PutObjects writes count objects named prefix + zero-padded index.
func (b *VersionedBucket) PutObjects(prefix string, count int) {
	for i := range count {
		b.PutObject(fmt.Sprintf("%s%05d", prefix, i), int64(i+1))
	}
}

func (b *VersionedBucket) insert(key string, size int64, marker bool, versionID string) string {
	b.seq++
	b.clock = b.clock.Add(time.Second)
	if versionID == "" {
		versionID = fmt.Sprintf("v%012d", b.seq)
	}
	entry := bucketEntry{
		key:          key,
		versionID:    versionID,
		seq:          b.seq,
		size:         size,
		deleteMarker: marker,
		modified:     b.clock,
	}
	b.issued[s3types.Target{Key: key, VersionID: versionID}] = b.seq

	// Newest version of a key sorts first.
	idx := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].key >= key
	})
	b.entries = append(b.entries, bucketEntry{})
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = entry
	return versionID
}

// Len returns the number of versions and delete markers in the bucket.
func (b *VersionedBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Count returns the number of versions and delete markers under prefix.
func (b *VersionedBucket) Count(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.entries {
		if strings.HasPrefix(e.key, prefix) {
			n++
		}
	}
	return n
}

// Targets returns every version under prefix in listing order.
func (b *VersionedBucket) Targets(prefix string) []s3types.Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	var targets []s3types.Target
	for _, e := range b.entries {
		if strings.HasPrefix(e.key, prefix) {
			targets = append(targets, s3types.Target{Key: e.key, VersionID: e.versionID})
		}
	}
	return targets
}

// ListCalls returns the number of ListObjectVersions calls.
func (b *VersionedBucket) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

// DeleteCalls returns the number of DeleteObjects calls.
func (b *VersionedBucket) DeleteCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleteCalls
}

// DeleteSizes returns the number of targets in each DeleteObjects call.
func (b *VersionedBucket) DeleteSizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.deleteSizes...)
}

// MaxConcurrentDeletes returns the highest number of overlapping DeleteObjects calls.
func (b *VersionedBucket) MaxConcurrentDeletes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

// ListObjectVersions lists versions and delete markers.
func (b *VersionedBucket) ListObjectVersions(
	ctx context.Context,
	params *s3.ListObjectVersionsInput,
	_ ...func(*s3.Options),
) (*s3.ListObjectVersionsOutput, error) {
	b.mu.Lock()
	b.listCalls++
	call := b.listCalls
	b.mu.Unlock()

	if b.ListHook != nil {
		if err := b.ListHook(call, params); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if aws.ToString(params.Bucket) != b.name {
		return nil, noSuchBucket(aws.ToString(params.Bucket))
	}

	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 || maxKeys > s3types.MaxBatchSize {
		maxKeys = s3types.MaxBatchSize
	}
	prefix := aws.ToString(params.Prefix)

	output := &s3.ListObjectVersionsOutput{
		Name:        aws.String(b.name),
		Prefix:      params.Prefix,
		MaxKeys:     aws.Int32(int32(maxKeys)),
		IsTruncated: aws.Bool(false),
	}

	var last *bucketEntry
	returned := 0
	for i := b.start(aws.ToString(params.KeyMarker), aws.ToString(params.VersionIdMarker)); i < len(b.entries); i++ {
		e := b.entries[i]
		if !strings.HasPrefix(e.key, prefix) {
			continue
		}
		if returned == maxKeys {
			output.IsTruncated = aws.Bool(true)
			output.NextKeyMarker = aws.String(last.key)
			output.NextVersionIdMarker = aws.String(last.versionID)
			break
		}

		latest := i == 0 || b.entries[i-1].key != e.key
		if e.deleteMarker {
			output.DeleteMarkers = append(output.DeleteMarkers, types.DeleteMarkerEntry{
				Key:          aws.String(e.key),
				VersionId:    aws.String(e.versionID),
				IsLatest:     aws.Bool(latest),
				LastModified: aws.Time(e.modified),
			})
		} else {
			output.Versions = append(output.Versions, types.ObjectVersion{
				Key:          aws.String(e.key),
				VersionId:    aws.String(e.versionID),
				IsLatest:     aws.Bool(latest),
				LastModified: aws.Time(e.modified),
				Size:         aws.Int64(e.size),
				ETag:         aws.String(fmt.Sprintf(`"%x"`, e.seq)),
				StorageClass: types.ObjectVersionStorageClassStandard,
			})
		}
		last = &b.entries[i]
		returned++
	}

	return output, nil
}

// start returns the index of the first entry after the markers. The position
// holds even when the marker version has since been deleted.
func (b *VersionedBucket) start(keyMarker, versionMarker string) int {
	if keyMarker == "" {
		return 0
	}
	seq, ok := b.issued[s3types.Target{Key: keyMarker, VersionID: versionMarker}]
	return sort.Search(len(b.entries), func(i int) bool {
		e := b.entries[i]
		if e.key != keyMarker {
			return e.key > keyMarker
		}
		return ok && e.seq < seq
	})
}

// DeleteObjects deletes the requested versions.
func (b *VersionedBucket) DeleteObjects(
	ctx context.Context,
	params *s3.DeleteObjectsInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectsOutput, error) {
	b.mu.Lock()
	b.deleteCalls++
	call := b.deleteCalls
	b.inFlight++
	b.maxInFlight = max(b.maxInFlight, b.inFlight)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if b.DeleteHook != nil {
		if err := b.DeleteHook(call, params); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if aws.ToString(params.Bucket) != b.name {
		return nil, noSuchBucket(aws.ToString(params.Bucket))
	}
	if params.Delete == nil || len(params.Delete.Objects) == 0 {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML", Message: "The XML you provided was not well-formed"}
	}
	if len(params.Delete.Objects) > s3types.MaxBatchSize {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML", Message: "too many objects in delete request"}
	}
	b.deleteSizes = append(b.deleteSizes, len(params.Delete.Objects))

	output := &s3.DeleteObjectsOutput{}
	quiet := aws.ToBool(params.Delete.Quiet)
	for _, obj := range params.Delete.Objects {
		key := aws.ToString(obj.Key)
		versionID := aws.ToString(obj.VersionId)
		if versionID == "" {
			versionID = s3types.NullVersionID
		}

		if b.DropKeys[key] {
			continue
		}
		if code, ok := b.FailKeys[key]; ok {
			output.Errors = append(output.Errors, types.Error{
				Key:       aws.String(key),
				VersionId: aws.String(versionID),
				Code:      aws.String(code),
				Message:   aws.String(code + " for " + key),
			})
			continue
		}

		marker := b.remove(key, versionID)
		if !quiet {
			output.Deleted = append(output.Deleted, types.DeletedObject{
				Key:          aws.String(key),
				VersionId:    aws.String(versionID),
				DeleteMarker: aws.Bool(marker),
			})
		}
	}

	return output, nil
}

// remove deletes a version if present. Deleting a missing version succeeds, as on S3.
func (b *VersionedBucket) remove(key, versionID string) bool {
	for i, e := range b.entries {
		if e.key == key && e.versionID == versionID {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return e.deleteMarker
		}
	}
	return false
}

func noSuchBucket(name string) error {
	return &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist: " + name}
}
