package platform

import "fmt"

// Lane is an opaque handle to an internally ordered command queue.
type Lane interface {
	fmt.Stringer
}

// Fence is an opaque handle to a one-shot synchronization point.
type Fence interface {
	fmt.Stringer
}

// Graph is the opaque replayable artifact produced by ending a capture.
type Graph interface {
	fmt.Stringer
}

// CaptureMode controls how a capture interacts with other threads.
type CaptureMode int

const (
	// CaptureModeGlobal forbids unsafe calls from any thread during capture.
	CaptureModeGlobal CaptureMode = iota
	// CaptureModeThreadLocal confines the capture to the calling thread.
	CaptureModeThreadLocal
	// CaptureModeRelaxed places no restrictions on other threads.
	CaptureModeRelaxed
)

var captureModeNames = map[CaptureMode]string{
	CaptureModeGlobal:      "global",
	CaptureModeThreadLocal: "thread-local",
	CaptureModeRelaxed:     "relaxed",
}

func (m CaptureMode) String() string {
	if s, ok := captureModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CaptureMode(%d)", int(m))
}

// Device is the native runtime consumed by the optimizers.
//
// Every method is synchronous with respect to the calling goroutine. Work
// enqueued on a lane runs later, on the device.
type Device interface {
	AcquireLane() (Lane, error)
	ReleaseLane(Lane) error

	AcquireFence() (Fence, error)
	ReleaseFence(Fence) error

	// BeginCapture turns lane into capture mode. Operations enqueued on it,
	// and on lanes that wait on fences recorded during the capture, are
	// recorded into a graph instead of executing.
	BeginCapture(lane Lane, mode CaptureMode) error
	// EndCapture closes the capture that began on lane.
	EndCapture(lane Lane) (Graph, error)

	// RecordFence captures the current tail of lane into fence.
	RecordFence(fence Fence, lane Lane) error
	// WaitFence makes all future work on lane wait for fence.
	WaitFence(lane Lane, fence Fence) error
}
