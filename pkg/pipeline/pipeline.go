// Package pipeline runs the load, plan, capture, render sequence shared by
// the CLI and the API server.
//
// # Architecture
//
// A run has four stages:
//
//  1. Load: read a graph description (JSON or TOML) from a file or bytes
//  2. Plan: schedule the graph with the chosen strategy and lane count
//  3. Capture: replay the plan on a fresh simulated device
//  4. Render: produce the requested artifacts
//
// Plans and rendered artifacts are cached, keyed by the content hash of the
// graph and the scheduling options. Capture is cheap and always recomputed.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Path:     "graph.toml",
//	    Strategy: "round-robin",
//	    Lanes:    4,
//	    Formats:  []string{"json", "svg"},
//	})
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanecap/pkg/dag"
	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultStrategy is the scheduling strategy used when none is given.
	DefaultStrategy = optimizer.StrategyRoundRobin

	// DefaultLanes is the lane count used when none is given.
	DefaultLanes = optimizer.DefaultStreams

	// MaxLanes bounds the lane count accepted from users.
	MaxLanes = 64
)

// Format constants for output artifacts.
const (
	FormatJSON       = "json"        // plan and stats
	FormatDOT        = "dot"         // plan diagram source
	FormatSVG        = "svg"         // plan diagram
	FormatCaptureDOT = "capture.dot" // captured operations diagram source
	FormatCaptureSVG = "capture.svg" // captured operations diagram
)

// Graph description encodings for Options.Graph.
const (
	GraphJSON = "json"
	GraphTOML = "toml"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON:       true,
	FormatDOT:        true,
	FormatSVG:        true,
	FormatCaptureDOT: true,
	FormatCaptureSVG: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input: either a file path or inline graph bytes.
	Path        string `json:"path,omitempty"`
	Graph       []byte `json:"-"`
	GraphFormat string `json:"graph_format,omitempty"` // json or toml, for Graph

	// Scheduling options
	Strategy string `json:"strategy,omitempty"`
	Lanes    int    `json:"lanes,omitempty"`

	// Output options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`
	Capture  bool     `json:"capture,omitempty"` // replay the plan even if no artifact needs it
	Refresh  bool     `json:"refresh,omitempty"` // ignore cached entries

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the loaded task graph.
	Graph *dag.DAG

	// GraphHash is the content hash of the graph.
	GraphHash string

	// Plan is the computed schedule.
	Plan *optimizer.Plan

	// Capture is the replayed graph, nil unless a capture was needed.
	Capture *sim.Graph

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	LoadTime    time.Duration
	PlanTime    time.Duration
	CaptureTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	PlanHit   bool // Whether the plan came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errs.New(errs.ErrCodeInvalidInput, "invalid format: %q (must be one of: %s)",
			format, strings.Join(slices.Sorted(maps.Keys(ValidFormats)), ", "))
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Path == "" && len(o.Graph) == 0 {
		return errs.New(errs.ErrCodeInvalidInput, "graph path or graph data is required")
	}
	if len(o.Graph) > 0 {
		if o.GraphFormat == "" {
			o.GraphFormat = GraphJSON
		}
		if o.GraphFormat != GraphJSON && o.GraphFormat != GraphTOML {
			return errs.New(errs.ErrCodeInvalidInput, "invalid graph_format: %q (must be json or toml)", o.GraphFormat)
		}
	}

	if o.Strategy == "" {
		o.Strategy = string(DefaultStrategy)
	}
	s, err := optimizer.ParseStrategy(o.Strategy)
	if err != nil {
		return err
	}
	o.Strategy = string(s)

	switch {
	case s == optimizer.StrategySequential:
		o.Lanes = 1
	case o.Lanes == 0:
		o.Lanes = DefaultLanes
	}
	if err := errs.ValidateLanes(o.Lanes); err != nil {
		return err
	}
	if o.Lanes > MaxLanes {
		return errs.New(errs.ErrCodeConfiguration, "too many lanes: %d (max %d)", o.Lanes, MaxLanes)
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// NeedsCapture reports whether the run has to replay the plan on a device.
func (o *Options) NeedsCapture() bool {
	return o.Capture ||
		slices.Contains(o.Formats, FormatCaptureDOT) ||
		slices.Contains(o.Formats, FormatCaptureSVG)
}

// Optimizer returns the optimizer the options describe.
func (o *Options) Optimizer() (optimizer.Optimizer, error) {
	return optimizer.New(optimizer.Strategy(o.Strategy), o.Lanes, o.Logger)
}
