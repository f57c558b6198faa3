// Package supervisor owns the managed-child lifecycle: spawning, merged
// stdout/stderr capture, signal-escalated termination, reaping and removal.
// It borrows Commands from the Deputy State's Set; it never owns them.
package supervisor

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/edirooss/procman-deputy/internal/resourceprobe"
)

// Status is the coarse run state a Command can be queried for.
type Status int

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// ExitStatus records the outcome of the most recently reaped instance.
// It is meaningful only after a reap; a Command that has never exited has
// the zero value.
type ExitStatus struct {
	Exited     bool
	ExitCode   int
	Signaled   bool
	Signal     syscall.Signal
	CoreDumped bool
}

// Command is a managed child and the bookkeeping the Reconciler, Supervisor
// and Info Publisher share about it. Per the spec's "tagged record"
// guidance, the supervisor's own runtime handles are fused directly into
// this struct rather than hung off an opaque extension pointer.
type Command struct {
	SheriffID     int32
	CommandString string
	Nickname      string
	Group         string

	DesiredRunID int32
	ActualRunID  int32

	PID        int
	ExitStatus ExitStatus

	NumKillsSent int
	LastKillTime time.Time

	CPUUsage float64
	PrevProc resourceprobe.ProcessSnapshot
	CurProc  resourceprobe.ProcessSnapshot

	// RemoveRequested is set by the Reconciler's cull step for a command
	// that still has a live child; deletion happens in ReapDead once the
	// child is actually reaped.
	RemoveRequested bool

	// Runtime-only fields below; only the Supervisor touches them.
	cmd      *exec.Cmd
	pipeR    *fileCloser
	pipeW    *fileCloser
	outputID int64 // monotonic token distinguishing instances sharing a sheriff_id across restarts
}

// IsRunning reports whether a live child is currently associated with cmd.
func (c *Command) IsRunning() bool { return c.PID != 0 }

// OutputInstance exposes the spawn-generation token set by the most recent
// Start, so callers can recognize and drop an OutputEvent belonging to an
// instance that has since been superseded by a restart.
func (c *Command) OutputInstance() int64 { return c.outputID }

// Set is the Deputy State's collection of Commands, keyed by sheriff_id.
// It is not safe for concurrent use; by design the whole deputy state
// (including the Set) is owned exclusively by the event loop goroutine.
type Set struct {
	byID map[int32]*Command
}

// NewSet returns an empty Command set.
func NewSet() *Set {
	return &Set{byID: make(map[int32]*Command)}
}

// Get looks up a Command by sheriff_id.
func (s *Set) Get(id int32) (*Command, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Add inserts a new Command. The caller must ensure id uniqueness; Add
// overwrites silently if called twice with the same id (callers are
// expected to Get first).
func (s *Set) Add(c *Command) {
	s.byID[c.SheriffID] = c
}

// Delete removes a Command immediately, with no side effects on its child
// process. Callers must ensure the child (if any) has already been reaped
// or signalled.
func (s *Set) Delete(id int32) {
	delete(s.byID, id)
}

// All returns every Command in unspecified order. Callers that need to
// mutate the Set while iterating (cull, reap) must collect their target
// list from All first and mutate afterwards — never concurrently with a
// live range over the map.
func (s *Set) All() []*Command {
	out := make([]*Command, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	return out
}

// Len reports the number of Commands currently tracked.
func (s *Set) Len() int { return len(s.byID) }
