// Package validation checks scrub arguments before any S3 call is made.
package validation
