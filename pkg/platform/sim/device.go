package sim

import (
	"errors"
	"fmt"
	"sync"

	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// Sentinel errors reported by the simulator.
var (
	// ErrInjected is returned by an operation selected with FailOn.
	ErrInjected = errors.New("injected fault")

	// ErrUnknownHandle is returned for lanes or fences not issued by this
	// device, or already released.
	ErrUnknownHandle = errors.New("unknown or released handle")

	// ErrNotCapturing is returned when an operation needs a capturing lane.
	ErrNotCapturing = errors.New("lane is not capturing")

	// ErrAlreadyCapturing is returned by BeginCapture on a capturing lane.
	ErrAlreadyCapturing = errors.New("lane is already capturing")

	// ErrNotOrigin is returned by EndCapture on a lane that joined a capture
	// instead of beginning it.
	ErrNotOrigin = errors.New("lane did not begin the capture")

	// ErrFenceNotRecorded is returned when waiting on a fence with no record.
	ErrFenceNotRecorded = errors.New("fence has not been recorded")

	// ErrCrossCapture is returned when a fence is used outside its capture.
	ErrCrossCapture = errors.New("fence belongs to another capture")

	// ErrUnjoined is returned by EndCapture when a forked lane was not joined
	// back into the origin lane. The capture is still torn down.
	ErrUnjoined = errors.New("capture contains unjoined work")

	// ErrLaneCapturing is returned when releasing a lane during a capture.
	ErrLaneCapturing = errors.New("cannot release a capturing lane")
)

type lane struct {
	id   int
	cap  *capture
	idx  int // lane index within cap
	tail int // last op ID within cap, -1 if none
}

func (l *lane) String() string { return fmt.Sprintf("lane#%d", l.id) }

type fence struct {
	id    int
	cap   *capture
	point int // record op ID within cap, -1 if not recorded
}

func (f *fence) String() string { return fmt.Sprintf("fence#%d", f.id) }

type capture struct {
	origin *lane
	mode   platform.CaptureMode
	lanes  []*lane
	ops    []Op
}

func (c *capture) add(l *lane, kind OpKind, label string, deps ...int) int {
	op := Op{ID: len(c.ops), Kind: kind, Lane: l.idx, Label: label}
	if l.tail >= 0 {
		op.Deps = append(op.Deps, l.tail)
	}
	for _, d := range deps {
		if d >= 0 && d != l.tail {
			op.Deps = append(op.Deps, d)
		}
	}
	c.ops = append(c.ops, op)
	l.tail = op.ID
	return op.ID
}

// Device is a simulated command device. It is safe for concurrent use, and
// separate captures may run concurrently on different lanes.
type Device struct {
	mu        sync.Mutex
	nextLane  int
	nextFence int
	lanes     map[*lane]struct{}
	fences    map[*fence]struct{}
	calls     map[errs.Op]int
	failures  map[errs.Op]int
}

// NewDevice creates a simulated device with no injected faults.
func NewDevice() *Device {
	return &Device{
		lanes:    make(map[*lane]struct{}),
		fences:   make(map[*fence]struct{}),
		calls:    make(map[errs.Op]int),
		failures: make(map[errs.Op]int),
	}
}

// FailOn makes the nth call (1-based) of op fail with ErrInjected.
// Passing n <= 0 clears the fault for op.
func (d *Device) FailOn(op errs.Op, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n <= 0 {
		delete(d.failures, op)
		return
	}
	d.failures[op] = n
}

// Calls returns how many times op has been invoked, including failed calls.
func (d *Device) Calls(op errs.Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// LiveLanes returns the number of acquired, unreleased lanes.
func (d *Device) LiveLanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// LiveFences returns the number of acquired, unreleased fences.
func (d *Device) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fences)
}

// call counts an invocation and reports an injected fault. Callers hold d.mu.
func (d *Device) call(op errs.Op) error {
	d.calls[op]++
	if n, ok := d.failures[op]; ok && d.calls[op] == n {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// AcquireLane implements platform.Device.
func (d *Device) AcquireLane() (platform.Lane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpAcquireLane); err != nil {
		return nil, err
	}
	d.nextLane++
	l := &lane{id: d.nextLane, tail: -1}
	d.lanes[l] = struct{}{}
	return l, nil
}

// ReleaseLane implements platform.Device.
func (d *Device) ReleaseLane(pl platform.Lane) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpReleaseLane); err != nil {
		return err
	}
	l, err := d.lane(pl)
	if err != nil {
		return err
	}
	if l.cap != nil {
		return ErrLaneCapturing
	}
	delete(d.lanes, l)
	return nil
}

// AcquireFence implements platform.Device.
func (d *Device) AcquireFence() (platform.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpAcquireFence); err != nil {
		return nil, err
	}
	d.nextFence++
	f := &fence{id: d.nextFence, point: -1}
	d.fences[f] = struct{}{}
	return f, nil
}

// ReleaseFence implements platform.Device.
func (d *Device) ReleaseFence(pf platform.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpReleaseFence); err != nil {
		return err
	}
	f, err := d.fence(pf)
	if err != nil {
		return err
	}
	delete(d.fences, f)
	return nil
}

// BeginCapture implements platform.Device.
func (d *Device) BeginCapture(pl platform.Lane, mode platform.CaptureMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpBeginCapture); err != nil {
		return err
	}
	l, err := d.lane(pl)
	if err != nil {
		return err
	}
	if l.cap != nil {
		return ErrAlreadyCapturing
	}
	c := &capture{origin: l, mode: mode}
	d.join(c, l)
	return nil
}

// EndCapture implements platform.Device. The capture is torn down even when
// an error is returned.
func (d *Device) EndCapture(pl platform.Lane) (platform.Graph, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, err := d.lane(pl)
	if err != nil {
		d.calls[errs.OpEndCapture]++
		return nil, err
	}
	if l.cap == nil {
		d.calls[errs.OpEndCapture]++
		return nil, ErrNotCapturing
	}
	if l.cap.origin != l {
		d.calls[errs.OpEndCapture]++
		return nil, ErrNotOrigin
	}

	c := l.cap
	joined := c.joined()
	d.teardown(c)

	if err := d.call(errs.OpEndCapture); err != nil {
		return nil, err
	}
	if !joined {
		return nil, ErrUnjoined
	}
	return newGraph(c), nil
}

// RecordFence implements platform.Device.
func (d *Device) RecordFence(pf platform.Fence, pl platform.Lane) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpRecordFence); err != nil {
		return err
	}
	l, f, err := d.pair(pl, pf)
	if err != nil {
		return err
	}
	if l.cap == nil {
		return ErrNotCapturing
	}
	f.cap = l.cap
	f.point = l.cap.add(l, OpRecord, f.String())
	return nil
}

// WaitFence implements platform.Device. A lane outside any capture joins the
// capture the fence was recorded in.
func (d *Device) WaitFence(pl platform.Lane, pf platform.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpWaitFence); err != nil {
		return err
	}
	l, f, err := d.pair(pl, pf)
	if err != nil {
		return err
	}
	if f.cap == nil || f.point < 0 {
		return ErrFenceNotRecorded
	}
	if l.cap == nil {
		d.join(f.cap, l)
	} else if l.cap != f.cap {
		return ErrCrossCapture
	}
	l.cap.add(l, OpWait, f.String(), f.point)
	return nil
}

// Launch enqueues a unit of work labelled label on a capturing lane.
// Work callbacks call it to describe their GPU operation.
func (d *Device) Launch(pl platform.Lane, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(errs.OpWork); err != nil {
		return err
	}
	l, err := d.lane(pl)
	if err != nil {
		return err
	}
	if l.cap == nil {
		return ErrNotCapturing
	}
	l.cap.add(l, OpWork, label)
	return nil
}

func (d *Device) join(c *capture, l *lane) {
	l.cap = c
	l.idx = len(c.lanes)
	l.tail = -1
	c.lanes = append(c.lanes, l)
}

func (d *Device) teardown(c *capture) {
	for _, l := range c.lanes {
		l.cap = nil
		l.tail = -1
	}
	for f := range d.fences {
		if f.cap == c {
			f.cap = nil
			f.point = -1
		}
	}
}

func (d *Device) lane(pl platform.Lane) (*lane, error) {
	l, ok := pl.(*lane)
	if !ok {
		return nil, ErrUnknownHandle
	}
	if _, live := d.lanes[l]; !live {
		return nil, ErrUnknownHandle
	}
	return l, nil
}

func (d *Device) fence(pf platform.Fence) (*fence, error) {
	f, ok := pf.(*fence)
	if !ok {
		return nil, ErrUnknownHandle
	}
	if _, live := d.fences[f]; !live {
		return nil, ErrUnknownHandle
	}
	return f, nil
}

func (d *Device) pair(pl platform.Lane, pf platform.Fence) (*lane, *fence, error) {
	l, err := d.lane(pl)
	if err != nil {
		return nil, nil, err
	}
	f, err := d.fence(pf)
	if err != nil {
		return nil, nil, err
	}
	return l, f, nil
}

// joined reports whether every lane's tail is an ancestor of the origin tail.
func (c *capture) joined() bool {
	reach := make(map[int]bool, len(c.ops))
	stack := []int{}
	if c.origin.tail >= 0 {
		stack = append(stack, c.origin.tail)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[id] {
			continue
		}
		reach[id] = true
		stack = append(stack, c.ops[id].Deps...)
	}
	for _, l := range c.lanes {
		if l != c.origin && l.tail >= 0 && !reach[l.tail] {
			return false
		}
	}
	return true
}

var _ platform.Device = (*Device)(nil)
