// Package cli implements the bucketscrubber command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	scrubber "github.com/input-output-hk/catalyst-forge-libs/bucketscrubber"
	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "BUCKETSCRUBBER"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitPartial = 2
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// App holds the state shared by the commands of one invocation.
type App struct {
	Out io.Writer
	Err io.Writer

	// NewClient builds the scrub client from the configured options.
	NewClient func(opts ...s3types.Option) (*scrubber.Client, error)

	v      *viper.Viper
	logger *slog.Logger
}

// New creates an App writing results to out and logs to errOut.
func New(out, errOut io.Writer) *App {
	return &App{
		Out:       out,
		Err:       errOut,
		NewClient: scrubber.New,
		v:         viper.New(),
		logger:    slog.New(slog.DiscardHandler),
	}
}

// Command builds the root command.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "bucketscrubber",
		Short: "Delete every version and delete marker from a versioned S3 bucket",
		Long: `bucketscrubber empties a versioned S3 bucket, or a prefix within it, by listing
every object version and delete marker and removing them in bulk, one page at a time.

Every flag can also be set through the environment with the BUCKETSCRUBBER_ prefix
(for example BUCKETSCRUBBER_REGION) or through a config file given with --config.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	f := root.PersistentFlags()
	f.String("config", "", "Config file (yaml, json or toml)")
	f.String("region", "", "AWS region (defaults to the AWS config chain, then us-east-1)")
	f.String("endpoint", "", "Custom S3 endpoint, e.g. for LocalStack or MinIO")
	f.Bool("path-style", false, "Use path-style bucket addressing")
	f.Int("max-retries", 3, "Maximum SDK retry attempts per call")
	f.String("retry-mode", scrubber.RetryModeStandard, "SDK retry mode: standard or adaptive")
	f.Duration("http-timeout", 0, "HTTP client timeout per request (0 keeps the SDK default)")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	f.String("log-format", "text", "Log format: text or json")

	root.AddCommand(a.scrubCommand(), a.planCommand(), versionCommand())
	root.Version = Version
	root.SetVersionTemplate("bucketscrubber {{.Version}}\n")

	return root
}

// setup binds flags, env and config file, then builds the logger.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	flags := NewFlagLoader(cmd, a.v)
	if path := flags.String("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	logger, err := NewLogger(a.Err, flags.String("log-level"), flags.String("log-format"))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// client builds the scrub client from the persistent flags.
func (a *App) client(flags *FlagLoader, extra ...s3types.Option) (*scrubber.Client, error) {
	opts := []s3types.Option{
		scrubber.WithLogger(a.logger),
		scrubber.WithMaxRetries(flags.Int("max-retries")),
		scrubber.WithRetryMode(flags.String("retry-mode")),
		scrubber.WithForcePathStyle(flags.Bool("path-style")),
	}
	if region := flags.String("region"); region != "" {
		opts = append(opts, scrubber.WithRegion(region))
	}
	if endpoint := flags.String("endpoint"); endpoint != "" {
		opts = append(opts, scrubber.WithEndpoint(endpoint))
	}
	if timeout := flags.Duration("http-timeout"); timeout > 0 {
		opts = append(opts, scrubber.WithTimeout(timeout))
	}
	return a.NewClient(append(opts, extra...)...)
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	app := New(os.Stdout, os.Stderr)
	return app.Run(ctx, args)
}

// Run executes args against a fresh root command and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.Command()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exit *ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintf(a.Err, "Error: %v\n", exit.Err)
		}
		return exit.Code
	}
	fmt.Fprintf(a.Err, "Error: %v\n", err)
	return ExitFailure
}
