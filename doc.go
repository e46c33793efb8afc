// Package scrubber empties versioned S3 buckets.
//
// A scrub walks every object version and delete marker under an optional key
// prefix, one page at a time, and removes each page with a single verbose
// DeleteObjects call before asking for the next. The backend's report is
// reconciled against the request so that versions it failed to delete, or
// silently skipped, are surfaced rather than counted as deleted.
//
// Key features:
//   - Strictly sequential list and delete, one bulk delete per page
//   - Typed errors separating fatal backend failures from per-version ones
//   - Results that distinguish emptied, partially emptied and aborted scrubs
//   - Cancellation observed only between pages
//   - Dry-run planning that builds the delete requests without sending them
//
// Example usage:
//
//	client, err := scrubber.New(scrubber.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.Scrub(ctx, "my-bucket", "logs/")
//	if err != nil {
//	    return err // aborted
//	}
//	if result.Status == scrubber.StatusPartial {
//	    return result.Err()
//	}
package scrubber
