// Package optimizer captures a task DAG onto device lanes as a single
// replayable native graph.
//
// # Strategies
//
// Two strategies are provided:
//
//   - [Sequential] captures every node on one lane in topological order.
//     It records no fences and is the correctness baseline.
//   - [RoundRobin] levelizes the graph, spreads each level's nodes over N
//     lanes round-robin, and records a fence only where a dependency crosses
//     lanes.
//
// # Plans and execution
//
// Scheduling is split in two. [Sequential.Plan] and [RoundRobin.Plan] are
// pure: they compute a [Plan] (which node goes on which lane, in which
// order, waiting on which fences) without touching a device. [Execute]
// then drives a [platform.Device] through one capture session following
// the plan. Optimize does both.
//
// Plans are plain data, so they can be cached, served over HTTP, and
// rendered without a device.
//
// # Round-robin fencing
//
// For N > 1 lanes the capture is bracketed by a fork (a fence recorded on
// lane 0 and waited on by every other lane) and a join (every other lane
// records a fence that lane 0 waits on). Between them, for a node on lane
// s:
//
//   - for each predecessor on a lane other than s, s waits on that
//     predecessor's fence
//   - the node's work is enqueued on s
//   - if any successor runs on a lane other than s, one fence is recorded
//     on s right after the work and shared by every such successor
//
// Because predecessors always sit in a strictly lower level, every fence is
// recorded before it is waited on. With N == 1 there is nothing to fork, so
// the capture is observably the same as [Sequential].
//
// # Errors
//
// A lane count of zero is a CONFIGURATION_ERROR, reported by
// [NewRoundRobin] and [RoundRobin.SetNumStreams] before any device call.
// Any failed device call is a PLATFORM_ERROR naming the operation. Both
// abort the run; lanes and fences are released and no graph is returned.
//
// # Concurrency
//
// A run is single-goroutine and pinned to its OS thread for the capture.
// Per-run state lives outside the DAG, so several runs may share one DAG
// concurrently as long as each uses its own lanes.
package optimizer
