package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanecap/internal/api"
)

const defaultAddr = ":8080"

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		cache cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning API over HTTP",
		Long: `Serve the planning API over HTTP.

Endpoints:
  GET  /healthz      liveness probe
  POST /v1/plans     schedule a graph and return the plan and stats
  POST /v1/captures  schedule, replay and return the replay order

The server shuts down gracefully on SIGINT or SIGTERM. Use --redis-addr to
share cached plans between replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, cache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cache.register(cmd)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, flags cacheFlags) error {
	runner, err := c.newRunner(ctx, flags)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	return api.New(runner, loggerFromContext(ctx)).ListenAndServe(ctx, addr)
}
