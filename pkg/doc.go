// Package pkg provides the core libraries for lanecap GPU lane scheduling.
//
// # Overview
//
// lanecap takes a dependency graph of capturable GPU work items, assigns the
// items to a small number of command lanes, and records them as one
// replayable execution graph. The pkg directory is organized into:
//
//  1. [dag] - Task graph structure, with level and topological walks in dag/transform
//  2. [optimizer] - Sequential and round-robin scheduling into plans, and plan execution
//  3. [platform] - Device abstraction with scoped lanes and fences, plus a simulated device
//  4. [io] - JSON and TOML graph descriptions
//  5. [cache] - Plan and artifact caching on disk or in Redis
//  6. [render] - DOT and SVG diagrams of plans and captures
//  7. [pipeline] - Orchestration (load → plan → capture → render)
//  8. [observability] - Hook points for tracing, with an OpenTelemetry implementation
//
// # Architecture
//
// The typical data flow through lanecap:
//
//	Graph description (JSON/TOML)
//	         ↓
//	    [io] package (build the task graph)
//	         ↓
//	    [optimizer] package (plan: lanes, levels, fences)
//	         ↓
//	    [platform] device (capture the plan into a native graph)
//	         ↓
//	    [render] package (DOT/SVG/JSON output)
//
// # Quick Start
//
// Schedule a graph onto four lanes and capture it on the simulated device:
//
//	import (
//	    "context"
//	    graphio "github.com/matzehuels/lanecap/pkg/io"
//	    "github.com/matzehuels/lanecap/pkg/optimizer"
//	    "github.com/matzehuels/lanecap/pkg/platform/sim"
//	)
//
//	g, _ := graphio.ImportFile("model.toml")
//	dev := sim.NewDevice()
//	graphio.BindWork(g, graphio.Launching(dev.Launch))
//
//	exec, err := optimizer.OptimizeRoundRobin(context.Background(), dev, g, 4)
//
// For the full load, plan, capture and render sequence with caching, use
// [pipeline.Runner].
package pkg
