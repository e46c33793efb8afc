// Package internal contains implementation details of the bucket scrubber.
//
// Packages under internal are not part of the public API and may change
// without notice:
//   - s3api: the narrow S3 interface the scrubber consumes
//   - operations: version enumeration and batch deletion
//   - validation: argument checks run before any S3 call
//   - metrics, report, testutil: supporting infrastructure
//   - cli: the bucketscrubber command line
package internal
