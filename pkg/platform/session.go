package platform

import (
	"runtime"

	errs "github.com/matzehuels/lanecap/pkg/errors"
)

// Session is an open capture on an origin lane.
//
// The goroutine that calls Begin stays locked to its OS thread until End or
// Abort. A Session must not be shared between goroutines.
type Session struct {
	dev    Device
	origin Lane
	open   bool
}

// Begin starts a capture on origin in the given mode.
func Begin(dev Device, origin Lane, mode CaptureMode) (*Session, error) {
	runtime.LockOSThread()
	if err := dev.BeginCapture(origin, mode); err != nil {
		runtime.UnlockOSThread()
		return nil, errs.Platform(errs.OpBeginCapture, err)
	}
	return &Session{dev: dev, origin: origin, open: true}, nil
}

// Origin returns the lane the capture began on.
func (s *Session) Origin() Lane { return s.origin }

// Record records fence on lane.
func (s *Session) Record(fence Fence, lane Lane) error {
	if err := s.dev.RecordFence(fence, lane); err != nil {
		return errs.Platform(errs.OpRecordFence, err)
	}
	return nil
}

// Wait makes lane wait on fence.
func (s *Session) Wait(lane Lane, fence Fence) error {
	if err := s.dev.WaitFence(lane, fence); err != nil {
		return errs.Platform(errs.OpWaitFence, err)
	}
	return nil
}

// End closes the capture and returns the native graph.
func (s *Session) End() (Graph, error) {
	if !s.open {
		return nil, errs.New(errs.ErrCodeInternal, "capture session already closed")
	}
	s.open = false
	defer runtime.UnlockOSThread()

	g, err := s.dev.EndCapture(s.origin)
	if err != nil {
		return nil, errs.Platform(errs.OpEndCapture, err)
	}
	return g, nil
}

// Abort closes the capture and discards whatever was recorded. It is a no-op
// after End, so it can be deferred unconditionally.
func (s *Session) Abort() {
	if !s.open {
		return
	}
	s.open = false
	defer runtime.UnlockOSThread()
	_, _ = s.dev.EndCapture(s.origin)
}
