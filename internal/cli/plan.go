package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/pipeline"
)

// scheduleFlags holds the flags shared by the plan and capture commands.
type scheduleFlags struct {
	opts       pipeline.Options
	formatsStr string
	output     string
	cache      cacheFlags
}

func (f *scheduleFlags) register(cmd *cobra.Command, formatHelp string) {
	cmd.Flags().StringVarP(&f.opts.Strategy, "strategy", "s", string(pipeline.DefaultStrategy), "scheduling strategy: round-robin, sequential")
	cmd.Flags().IntVarP(&f.opts.Lanes, "lanes", "n", pipeline.DefaultLanes, "number of lanes (ignored by sequential)")
	cmd.Flags().StringVarP(&f.formatsStr, "format", "f", "", formatHelp)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&f.opts.Detailed, "detailed", false, "show level, index and kernel in diagrams")
	cmd.Flags().BoolVar(&f.opts.Refresh, "refresh", false, "recompute even when a cached plan exists")
	f.cache.register(cmd)
}

// planCommand creates the plan command for scheduling a graph onto lanes.
func (c *CLI) planCommand() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "plan [graph]",
		Short: "Schedule a task graph onto lanes",
		Long: `Schedule a task graph onto lanes and write the plan.

The graph is read from a JSON or TOML description. Round-robin scheduling
spreads each level across the lanes and inserts fences on cross-lane edges;
sequential scheduling runs everything on one lane in topological order.

Outputs are written next to the input unless --output is given:
  json         plan and stats
  dot, svg     plan diagram, one cluster per lane
  capture.dot  captured operations on the simulated device
  capture.svg

Plans are cached locally, keyed by the graph contents and options.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.opts.Path = args[0]
			flags.opts.Formats = parseFormats(flags.formatsStr, pipeline.FormatJSON)
			if flags.output != "" {
				if err := errs.ValidatePath(flags.output); err != nil {
					return err
				}
			}
			if err := pipeline.ValidateFormats(flags.opts.Formats); err != nil {
				return err
			}
			return c.runPlan(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags)
		},
	}

	flags.register(cmd, "output format(s): json (default), dot, svg, capture.dot, capture.svg (comma-separated)")

	return cmd
}

func (c *CLI) runPlan(ctx context.Context, w, status io.Writer, flags scheduleFlags) error {
	runner, err := c.newRunner(ctx, flags.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	flags.opts.Logger = loggerFromContext(ctx)

	spinner := newSpinner(ctx, status, "Planning...")
	spinner.Start()
	result, err := runner.Execute(ctx, flags.opts)
	if err != nil {
		spinner.StopWithError("Planning failed")
		return err
	}
	spinner.Stop()

	stats := result.Plan.Stats()
	printSuccess(w, "Planned %s", flags.opts.Path)
	printStats(w, result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.PlanHit)
	printKeyValue(w, "strategy", string(result.Plan.Strategy))
	printKeyValue(w, "lanes", strconv.Itoa(result.Plan.Lanes))
	printKeyValue(w, "levels", strconv.Itoa(result.Plan.Levels))
	printKeyValue(w, "fences", strconv.Itoa(stats.Fences))
	printKeyValue(w, "load", fmt.Sprint(stats.Load))

	paths, err := writeArtifacts(result.Artifacts, flags.opts.Formats, flags.opts.Path, flags.output)
	if err != nil {
		return err
	}
	printNewline(w)
	for _, p := range paths {
		printFile(w, p)
	}
	printNewline(w)
	printNextStep(w, "Replay on the simulated device", appName+" capture "+flags.opts.Path)
	return nil
}

// writeArtifacts writes each requested format and returns the paths written.
// A single format with an explicit output is written to exactly that path.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) ([]string, error) {
	formats = slices.Compact(slices.Clone(formats))
	var paths []string
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			return nil, fmt.Errorf("missing %s artifact", format)
		}
		path := basePath(output, input) + "." + format
		if len(formats) == 1 && output != "" && filepath.Ext(output) != "" {
			path = output
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
