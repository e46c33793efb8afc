package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	s3errors "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/errors"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/report"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// pushJob is the Pushgateway job name for scrub metrics.
const pushJob = "bucketscrubber"

func (a *App) scrubCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrub BUCKET [PREFIX]",
		Short: "Delete every version and delete marker under a prefix",
		Long: `Delete every object version and delete marker in BUCKET whose key starts with
PREFIX. Without PREFIX the whole bucket is scrubbed.

Exits 0 when the bucket was emptied, 2 when some versions could not be deleted or
confirmed, and 1 when the scrub was aborted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.runScrub,
	}

	addScrubFlags(cmd)
	f := cmd.Flags()
	f.String("report", "", "Write a JSON remediation report to this path")
	f.String("pushgateway", "", "Push scrub metrics to this Prometheus Pushgateway URL")
	f.Bool("progress", false, "Print a line per scrubbed page to stderr")
	f.Bool("allow-partial", false, "Exit 0 when some versions could not be deleted")

	return cmd
}

func (a *App) planCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan BUCKET [PREFIX]",
		Short: "List what scrub would delete without deleting anything",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  a.runPlan,
	}

	addScrubFlags(cmd)
	cmd.Flags().Bool("targets", false, "Print every version that would be deleted")

	return cmd
}

func addScrubFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("page-size", 1000, "Versions listed per page (1-1000)")
	f.Duration("call-timeout", scrubber.DefaultCallTimeout, "Timeout for each list and delete call")
	f.Float64("page-rate", 0, "Maximum pages per second (0 is unlimited)")
	f.Duration("scrub-timeout", 0, "Overall time limit (0 is unlimited)")
}

func targetArgs(args []string) (bucket, prefix string) {
	bucket = args[0]
	if len(args) > 1 {
		prefix = args[1]
	}
	return bucket, prefix
}

func scrubOptions(flags *FlagLoader) []s3types.ScrubOption {
	opts := []s3types.ScrubOption{
		scrubber.WithCallTimeout(flags.Duration("call-timeout")),
	}
	if size := flags.Int("page-size"); size > 0 {
		opts = append(opts, scrubber.WithPageSize(int32(min(size, s3types.MaxBatchSize))))
	}
	if rate := flags.Float64("page-rate"); rate > 0 {
		opts = append(opts, scrubber.WithPageRate(rate))
	}
	return opts
}

func withScrubTimeout(ctx context.Context, flags *FlagLoader) (context.Context, context.CancelFunc) {
	if timeout := flags.Duration("scrub-timeout"); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (a *App) runScrub(cmd *cobra.Command, args []string) error {
	bucket, prefix := targetArgs(args)
	flags := NewFlagLoader(cmd, a.v)

	reg := prometheus.NewRegistry()
	client, err := a.client(flags, scrubber.WithMetricsRegisterer(reg))
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	ctx, cancel := withScrubTimeout(cmd.Context(), flags)
	defer cancel()

	opts := scrubOptions(flags)
	if flags.Bool("progress") {
		opts = append(opts, scrubber.WithProgress(&progressPrinter{w: a.Err}))
	}

	res, scrubErr := client.Scrub(ctx, bucket, prefix, opts...)
	if res == nil {
		return &ExitError{Code: ExitFailure, Err: scrubErr}
	}
	printResult(a.Out, res)

	if path := flags.String("report"); path != "" {
		if err := writeReport(path, res); err != nil {
			a.logger.ErrorContext(ctx, "writing report failed", "path", path, "error", err)
		} else {
			a.logger.InfoContext(ctx, "report written", "path", path, "entries", res.Errored+res.Unconfirmed)
		}
	}

	if url := flags.String("pushgateway"); url != "" {
		// Push on the command context so an expired scrub timeout does not drop the metrics.
		if err := pushMetrics(cmd.Context(), url, reg, res); err != nil {
			a.logger.WarnContext(ctx, "pushing metrics failed", "url", url, "error", err)
		}
	}

	switch {
	case scrubErr != nil:
		return &ExitError{Code: ExitFailure, Err: scrubErr}
	case res.Status == scrubber.StatusPartial && !flags.Bool("allow-partial"):
		return &ExitError{Code: ExitPartial, Err: s3errors.NewBucketError("scrub", bucket, s3errors.ErrPartialDeletion).
			WithMessage(fmt.Sprintf("%d versions failed, %d unconfirmed", res.Errored, res.Unconfirmed))}
	default:
		return nil
	}
}

func (a *App) runPlan(cmd *cobra.Command, args []string) error {
	bucket, prefix := targetArgs(args)
	flags := NewFlagLoader(cmd, a.v)

	client, err := a.client(flags)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	ctx, cancel := withScrubTimeout(cmd.Context(), flags)
	defer cancel()

	plan, err := client.Plan(ctx, bucket, prefix, scrubOptions(flags)...)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: err}
	}

	if flags.Bool("targets") {
		for _, req := range plan.Requests {
			for _, t := range req.Targets {
				fmt.Fprintf(a.Out, "%s\t%s\n", t.Key, t.VersionID)
			}
		}
	}
	fmt.Fprintf(a.Out, "%s: pages=%d seen=%d requests=%d targets=%d\n",
		describeTarget(plan.Bucket, plan.Prefix), plan.Pages, plan.Seen, len(plan.Requests), plan.Targets())
	return nil
}

func describeTarget(bucket, prefix string) string {
	if prefix == "" {
		return "s3://" + bucket
	}
	return "s3://" + bucket + "/" + prefix
}

func printResult(w io.Writer, res *scrubber.Result) {
	fmt.Fprintf(w, "%s: status=%s pages=%d delete_calls=%d seen=%d deleted=%d errors=%d unconfirmed=%d duration=%s\n",
		describeTarget(res.Bucket, res.Prefix), res.Status, res.Pages, res.DeleteCalls,
		res.Seen, res.Deleted, res.Errored, res.Unconfirmed, res.Duration().Round(time.Millisecond))
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed\t%s\t%s\t%s\t%s\n", f.Key, f.VersionID, f.Code, f.Message)
	}
	for _, t := range res.UnconfirmedTargets {
		fmt.Fprintf(w, "  unconfirmed\t%s\t%s\n", t.Key, t.VersionID)
	}
}

func writeReport(path string, res *scrubber.Result) error {
	rep := &report.Report{
		ScrubID:     res.RunID,
		Bucket:      res.Bucket,
		Prefix:      res.Prefix,
		Status:      string(res.Status),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Seen:        res.Seen,
		Deleted:     res.Deleted,
		Errored:     res.Errored,
		Unconfirmed: res.Unconfirmed,
	}
	rep.AddErrors(res.Failures)
	rep.AddUnconfirmed(res.UnconfirmedTargets)

	return report.NewOSWriter(filepath.Dir(path)).Write(filepath.Base(path), rep)
}

func pushMetrics(ctx context.Context, url string, reg *prometheus.Registry, res *scrubber.Result) error {
	pusher := push.New(url, pushJob).
		Gatherer(reg).
		Grouping("bucket", res.Bucket)
	if res.Prefix != "" {
		pusher = pusher.Grouping("prefix", res.Prefix)
	}
	return pusher.PushContext(ctx)
}

// progressPrinter writes one line per scrubbed page.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) PageDone(r s3types.PageReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "page %d: records=%d deleted=%d errored=%d unconfirmed=%d\n",
		r.Page, r.Records, r.Deleted, r.Errored, r.Unconfirmed)
}

func (p *progressPrinter) Complete() {}

func (p *progressPrinter) Error(error) {}
