package supervisor

// OutputEvent is one unit of work handed from a pipe-reading goroutine to
// the event loop. The loop is the only goroutine allowed to touch Command
// or Set state; pipe goroutines only ever produce these events.
type OutputEvent struct {
	SheriffID int32
	Text      string // verbatim bytes read this round, not yet line-split
	EOF       bool   // pipe reached EOF or a read error occurred; see Err
	Err       error
	instance  int64 // matches Command.outputID at spawn time; stale events are dropped by the loop
}

// Instance exposes the spawn-generation token an OutputEvent was produced
// for, so callers can discard events belonging to an instance that has
// since been superseded by a restart.
func (e OutputEvent) Instance() int64 { return e.instance }
