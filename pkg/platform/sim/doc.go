// Package sim provides an in-memory [platform.Device] that records captured
// lane operations into an inspectable graph.
//
// The simulator enforces the capture rules a native runtime would:
//
//   - work may only be enqueued on a lane that is part of a capture, either
//     the origin lane or a lane that waited on a fence recorded in it
//   - a lane may only wait on a fence that has been recorded
//   - ending a capture fails if a forked lane was not joined back into the
//     origin lane
//
// Faults can be injected per operation with [Device.FailOn], and live
// resources are tracked so tests can assert that nothing leaks.
//
//	dev := sim.NewDevice()
//	work := func(l platform.Lane) error { return dev.Launch(l, "gemm") }
//
// [platform.Device]: github.com/matzehuels/lanecap/pkg/platform.Device
package sim
