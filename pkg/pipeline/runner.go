package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanecap/pkg/cache"
	"github.com/matzehuels/lanecap/pkg/dag"
	"github.com/matzehuels/lanecap/pkg/observability"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
)

// Cache key types reported to observability hooks.
const (
	keyTypePlan     = "plan"
	keyTypeArtifact = "artifact"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → plan → capture → render pipeline with
// caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Load
	start := time.Now()
	g, hash, err := Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Graph = g
	result.GraphHash = hash
	result.Stats.LoadTime = time.Since(start)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()

	r.Logger.Info("loaded graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", result.Stats.LoadTime)

	// Stage 2: Plan
	start = time.Now()
	plan, planHit, err := r.PlanWithCacheInfo(ctx, g, hash, opts)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	result.Plan = plan
	result.Stats.PlanTime = time.Since(start)
	result.CacheInfo.PlanHit = planHit

	stats := plan.Stats()
	r.Logger.Info("planned schedule",
		"strategy", plan.Strategy,
		"lanes", plan.Lanes,
		"levels", plan.Levels,
		"fences", stats.Fences,
		"cached", planHit,
		"duration", result.Stats.PlanTime)

	// Stage 3: Capture
	if opts.NeedsCapture() {
		start = time.Now()
		sg, err := Capture(ctx, g, plan, opts)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		result.Capture = sg
		result.Stats.CaptureTime = time.Since(start)

		r.Logger.Info("captured graph",
			"ops", len(sg.Ops()),
			"fences", sg.FenceCount(),
			"duration", result.Stats.CaptureTime)
	}

	// Stage 4: Render
	start = time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, g, hash, plan, result.Capture, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(start)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// PlanWithCacheInfo computes the plan for g, using the cache when possible,
// and reports whether it came from cache.
func (r *Runner) PlanWithCacheInfo(ctx context.Context, g *dag.DAG, graphHash string, opts Options) (*optimizer.Plan, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	key := r.Keyer.PlanKey(graphHash, opts.Strategy, opts.Lanes)
	if !opts.Refresh {
		if data, hit := r.get(ctx, keyTypePlan, key); hit {
			var plan optimizer.Plan
			if err := json.Unmarshal(data, &plan); err == nil && plan.Validate(g) == nil {
				return &plan, true, nil
			}
			r.Logger.Warn("discarding stale cached plan", "key", key)
		}
	}

	o, err := opts.Optimizer()
	if err != nil {
		return nil, false, err
	}
	plan, err := o.Plan(g)
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(plan); err == nil {
		r.set(ctx, keyTypePlan, key, data, cache.TTLPlan)
	}
	return plan, false, nil
}

// Plan is a convenience wrapper that calls PlanWithCacheInfo and discards
// the cache hit info.
func (r *Runner) Plan(ctx context.Context, g *dag.DAG, graphHash string, opts Options) (*optimizer.Plan, error) {
	plan, _, err := r.PlanWithCacheInfo(ctx, g, graphHash, opts)
	return plan, err
}

// RenderWithCacheInfo renders artifacts with caching and reports whether all
// of them came from cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g *dag.DAG, graphHash string, plan *optimizer.Plan, capture *sim.Graph, opts Options) (map[string][]byte, bool, error) {
	planData, err := json.Marshal(plan)
	if err != nil {
		return nil, false, fmt.Errorf("serialize plan for cache key: %w", err)
	}
	planHash := cache.Hash(append([]byte(graphHash), planData...))
	key := func(format string) string {
		if opts.Detailed {
			format += "+detailed"
		}
		return r.Keyer.ArtifactKey(planHash, format)
	}

	if !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			data, hit := r.get(ctx, keyTypeArtifact, key(format))
			if !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			return artifacts, true, nil
		}
	}

	if capture == nil && opts.NeedsCapture() {
		capture, err = Capture(ctx, g, plan, opts)
		if err != nil {
			return nil, false, err
		}
	}
	rendered, err := Render(ctx, g, graphHash, plan, capture, opts)
	if err != nil {
		return nil, false, err
	}
	for format, data := range rendered {
		r.set(ctx, keyTypeArtifact, key(format), data, cache.TTLArtifact)
	}
	return rendered, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// get reads key and reports the outcome to the cache hooks. Backend errors
// count as misses.
func (r *Runner) get(ctx context.Context, keyType, key string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "key", key, "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

// set writes key. Failures are logged, never returned.
func (r *Runner) set(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
