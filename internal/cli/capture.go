package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/pipeline"
)

// captureCommand creates the capture command for replaying a plan.
func (c *CLI) captureCommand() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "capture [graph]",
		Short: "Replay a schedule on the simulated device",
		Long: `Replay a schedule on the simulated device.

Every node launches a kernel labelled with its ID. The captured graph is
checked against the same rules a native capture enforces, and its replay
order is printed with the lane each node ran on.

Pass --format to also write artifacts, for example capture.svg.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.opts.Path = args[0]
			flags.opts.Capture = true
			if flags.output != "" {
				if err := errs.ValidatePath(flags.output); err != nil {
					return err
				}
			}
			if flags.formatsStr != "" {
				flags.opts.Formats = parseFormats(flags.formatsStr, pipeline.FormatCaptureDOT)
				if err := pipeline.ValidateFormats(flags.opts.Formats); err != nil {
					return err
				}
			}
			return c.runCapture(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags)
		},
	}

	flags.register(cmd, "write artifacts: json, dot, svg, capture.dot, capture.svg (comma-separated)")

	return cmd
}

func (c *CLI) runCapture(ctx context.Context, w, status io.Writer, flags scheduleFlags) error {
	runner, err := c.newRunner(ctx, flags.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	flags.opts.Logger = loggerFromContext(ctx)

	spinner := newSpinner(ctx, status, "Capturing...")
	spinner.Start()
	result, err := runner.Execute(ctx, flags.opts)
	if err != nil {
		spinner.StopWithError("Capture failed")
		return err
	}
	spinner.Stop()

	sg := result.Capture
	printSuccess(w, "Captured %s", flags.opts.Path)
	printStats(w, result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.PlanHit)
	printKeyValue(w, "lanes", strconv.Itoa(sg.LaneCount()))
	printKeyValue(w, "ops", strconv.Itoa(len(sg.Ops())))
	printKeyValue(w, "fences", strconv.Itoa(sg.FenceCount()))
	printKeyValue(w, "waits", strconv.Itoa(sg.WaitCount()))

	printNewline(w)
	printTitle(w, "Replay order")
	for i, label := range sg.Order() {
		fmt.Fprintf(w, "%4d  %s  %s\n", i+1, laneLabel(sg.LaneOf(label)), StyleValue.Render(label))
	}

	if flags.formatsStr == "" {
		return nil
	}
	paths, err := writeArtifacts(result.Artifacts, flags.opts.Formats, flags.opts.Path, flags.output)
	if err != nil {
		return err
	}
	printNewline(w)
	for _, p := range paths {
		printFile(w, p)
	}
	return nil
}
