package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanecap/pkg/buildinfo"
	"github.com/matzehuels/lanecap/pkg/observability/otelhooks"
)

// shutdownTimeout bounds the trace exporter flush on exit.
const shutdownTimeout = 5 * time.Second

// RootCommand creates the root cobra command with all subcommands registered.
//
// The persistent --verbose flag switches the logger to debug level, and
// --otlp-endpoint exports one span per optimizer run to an OTLP collector.
// The logger is attached to the command context for loggerFromContext.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Lanecap schedules GPU task graphs onto capture lanes",
		Long: `Lanecap assigns a dependency graph of capturable GPU work items to a small
number of command lanes and stitches them into one replayable execution graph.

Graphs are read from JSON or TOML descriptions. Plans can be inspected,
replayed on a simulated device, rendered as DOT or SVG, or served over HTTP.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.otlpEndpoint, "otlp-endpoint", "", "export optimizer traces to an OTLP gRPC collector (host:port)")

	// Register all subcommands
	root.AddCommand(c.levelsCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.captureCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup applies the persistent flags before any subcommand runs.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	level := LogInfo
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))

	if c.otlpEndpoint == "" {
		return nil
	}
	shutdown, err := otelhooks.Setup(cmd.Context(), c.otlpEndpoint, appName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	c.shutdown = shutdown
	c.Logger.Debug("tracing enabled", "endpoint", c.otlpEndpoint)
	return nil
}

// teardown flushes pending traces. It is safe to call more than once.
func (c *CLI) teardown() error {
	if c.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := c.shutdown(ctx)
	c.shutdown = nil
	return err
}

// Close releases resources held by the CLI. main calls it after the command
// tree returns so traces are flushed on error paths too.
func (c *CLI) Close() error {
	return c.teardown()
}
