// Package delete handles bulk deletion of S3 object versions.
//
// Requests use S3's DeleteObjects API in verbose mode so every confirmed
// deletion is reported back and can be reconciled against the request.
package delete
