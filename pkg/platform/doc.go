// Package platform defines the device boundary used by the lane optimizers.
//
// A [Device] hands out command lanes and fences, turns a lane into capture
// mode, and closes a capture into an opaque replayable [Graph]. Handles are
// opaque: the optimizer only passes them back to the device that issued them.
//
// # Scoped resources
//
// Lanes and fences are acquired through a [Scope] and released in reverse
// acquisition order by [Scope.Close], on every exit path:
//
//	scope := platform.NewScope(dev)
//	defer scope.Close()
//	lanes, err := scope.Lanes(4)
//
// # Capture sessions
//
// A [Session] is bound to the goroutine and OS thread that began it. Begin
// locks the calling goroutine to its thread with runtime.LockOSThread, so a
// native runtime that keeps thread-local capture state sees every call of the
// session on one thread. Two sessions started from different goroutines never
// observe each other.
//
// The [sim] subpackage provides an in-memory device for tests and dry runs.
//
// [sim]: github.com/matzehuels/lanecap/pkg/platform/sim
package platform
