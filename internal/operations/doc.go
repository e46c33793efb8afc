// Package operations contains the two halves of a scrub: versioned listing
// and bulk deletion. Each is isolated into its own subpackage and talks to
// S3 only through a narrow interface so it can be tested against mocks.
package operations
