// Package list handles versioned S3 listings.
// It walks ListObjectVersions one bounded page at a time, turning versions and
// delete markers into VersionRecords and carrying the key/version markers forward.
package list
