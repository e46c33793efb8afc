// Command bucketscrubber-lambda serves the bucket scrubber as a CloudFormation
// custom resource.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/cli"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/lifecycle"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix(cli.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-mode", scrubber.RetryModeAdaptive)
	v.SetDefault("call-timeout", scrubber.DefaultCallTimeout)
	v.SetDefault("deadline-margin", lifecycle.DefaultDeadlineMargin)

	logger, err := cli.NewLogger(os.Stdout, v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client, err := scrubber.New(
		scrubber.WithLogger(logger),
		scrubber.WithMaxRetries(v.GetInt("max-retries")),
		scrubber.WithRetryMode(v.GetString("retry-mode")),
	)
	if err != nil {
		logger.Error("creating scrub client", "error", err)
		os.Exit(1)
	}

	lifecycle.NewHandler(client,
		lifecycle.WithLogger(logger),
		lifecycle.WithFailOnPartial(v.GetBool("fail-on-partial")),
		lifecycle.WithDeadlineMargin(v.GetDuration("deadline-margin")),
		lifecycle.WithScrubOptions(scrubber.WithCallTimeout(v.GetDuration("call-timeout"))),
	).Start()
}
