package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanecap/pkg/dag/transform"
	graphio "github.com/matzehuels/lanecap/pkg/io"
)

// levelsCommand creates the levels command for inspecting level buckets.
func (c *CLI) levelsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "levels [graph]",
		Short: "Print the level buckets of a task graph",
		Long: `Print the level buckets of a task graph.

A node's level is the length of the longest dependency chain leading to it.
Nodes in the same level have no dependencies on each other, and their
position within the bucket decides the lane round-robin scheduling picks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLevels(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print buckets as a JSON array of node ID arrays")

	return cmd
}

func (c *CLI) runLevels(ctx context.Context, w io.Writer, input string, asJSON bool) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	g, err := graphio.ImportFile(input)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}
	levels, err := transform.Levelize(g)
	if err != nil {
		return fmt.Errorf("levelize %s: %w", input, err)
	}
	prog.done(fmt.Sprintf("Levelized %d nodes into %d levels", g.NodeCount(), levels.Len()))

	buckets := make([][]string, levels.Len())
	for i, bucket := range levels.Buckets {
		buckets[i] = make([]string, len(bucket))
		for j, n := range bucket {
			buckets[i][j] = n.ID
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buckets)
	}

	printTitle(w, fmt.Sprintf("%s: %d levels", input, levels.Len()))
	for i, ids := range buckets {
		printKeyValue(w, fmt.Sprintf("level %d", i), strings.Join(ids, " "))
	}
	return nil
}
