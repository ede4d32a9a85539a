package platform

import (
	"errors"

	errs "github.com/matzehuels/lanecap/pkg/errors"
)

// Scope owns the lanes and fences acquired for one optimizer run.
// The zero value is not usable; use NewScope.
//
// Scope is not safe for concurrent use.
type Scope struct {
	dev    Device
	lanes  []Lane
	fences []Fence
	closed bool
}

// NewScope creates an empty scope on dev.
func NewScope(dev Device) *Scope {
	return &Scope{dev: dev}
}

// Lane acquires one lane owned by the scope.
func (s *Scope) Lane() (Lane, error) {
	l, err := s.dev.AcquireLane()
	if err != nil {
		return nil, errs.Platform(errs.OpAcquireLane, err)
	}
	s.lanes = append(s.lanes, l)
	return l, nil
}

// Lanes acquires n lanes owned by the scope. On failure the lanes acquired so
// far stay in the scope and are released by Close.
func (s *Scope) Lanes(n int) ([]Lane, error) {
	lanes := make([]Lane, 0, n)
	for range n {
		l, err := s.Lane()
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, l)
	}
	return lanes, nil
}

// Fence acquires one fence owned by the scope.
func (s *Scope) Fence() (Fence, error) {
	f, err := s.dev.AcquireFence()
	if err != nil {
		return nil, errs.Platform(errs.OpAcquireFence, err)
	}
	s.fences = append(s.fences, f)
	return f, nil
}

// Close releases every fence, then every lane, each in reverse acquisition
// order. All releases are attempted; the errors are joined. Close is
// idempotent.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var all []error
	for i := len(s.fences) - 1; i >= 0; i-- {
		if err := s.dev.ReleaseFence(s.fences[i]); err != nil {
			all = append(all, errs.Platform(errs.OpReleaseFence, err))
		}
	}
	for i := len(s.lanes) - 1; i >= 0; i-- {
		if err := s.dev.ReleaseLane(s.lanes[i]); err != nil {
			all = append(all, errs.Platform(errs.OpReleaseLane, err))
		}
	}
	s.fences, s.lanes = nil, nil
	return errors.Join(all...)
}
