// mqtt-relay publishes the contents of a file to an MQTT topic.
//
// The file is republished whenever it changes, whenever the broker
// connection is (re)established, and on a fixed refresh interval so the
// broker's retained value never goes stale.
//
// Exit status: 0 clean shutdown, 2 configuration or usage error,
// 3 broker connection failure or timeout, 1 anything else.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt-relay/internal/pidfile"
	"github.com/nerrad567/mqtt-relay/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitConfig     = 2
	exitConnection = 3
)

// errUsage marks command-line usage errors.
var errUsage = errors.New("usage error")

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with the given args and returns the exit code.
// It is separated from main for testability.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "mqtt-relay: %v\n", err) //nolint:errcheck // best-effort stderr
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps an error returned by the command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, pidfile.ErrLocked):
		return exitConfig
	case errors.Is(err, mqtt.ErrConnectionFailed),
		errors.Is(err, relay.ErrConnectTimeout):
		return exitConnection
	default:
		return exitError
	}
}

// newRootCmd creates the root cobra command.
func newRootCmd() *cobra.Command {
	flags := &flagValues{}

	root := &cobra.Command{
		Use:   "mqtt-relay [flags] PATH",
		Short: "Publish the contents of a file to an MQTT topic",
		Long: `mqtt-relay watches PATH and publishes its contents to an MQTT topic
whenever the file changes, whenever the broker connection is established and
every refresh interval.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("%w: expected at most one PATH, got %d arguments", errUsage, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, args)
			if err != nil {
				return err
			}
			return runRelay(cmd.Context(), cfg, flags.debug)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	root.SetVersionTemplate("mqtt-relay {{.Version}}\n")
	root.CompletionOptions.DisableDefaultCmd = true

	registerFlags(root.Flags(), flags)

	return root
}

// loadConfig merges defaults, the config file, the environment and flags,
// then finalises and validates the result.
func loadConfig(cmd *cobra.Command, flags *flagValues, args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath(cmd, flags))
	if err != nil {
		return nil, err
	}

	applyFlags(cmd.Flags(), flags, cfg)
	if len(args) == 1 {
		cfg.Relay.Path = args[0]
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath returns the configuration file to load.
// --config wins over MQTTRELAY_CONFIG; with neither set only defaults,
// environment and flags apply.
func configPath(cmd *cobra.Command, flags *flagValues) string {
	if cmd.Flags().Changed("config") {
		return flags.configPath
	}
	return os.Getenv("MQTTRELAY_CONFIG")
}
