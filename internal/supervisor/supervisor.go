package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// killRateLimit is the minimum spacing between two escalating signals sent
// to the same command, per spec.md §4.3 / §8 property 4.
const killRateLimit = 900 * time.Millisecond

// killEscalateAfter is the send count at which Stop switches from SIGTERM
// to SIGKILL: sends 1-5 are SIGTERM, send 6 is SIGKILL (spec.md §8
// property 4 is the authoritative contract; it pins the exact send index,
// which the prose threshold in §4.3 states with an off-by-one that we
// resolve in the property's favor — see DESIGN.md).
const killEscalateAfter = 5

// DefaultChunkSize is the minimum read chunk the spec requires (≥1 KiB);
// we use a larger default so typical log lines aren't needlessly split.
const DefaultChunkSize = 4096

// ReapResult describes one child reaped by ReapDead.
type ReapResult struct {
	Command *Command
	Removed bool   // true if the Command was deleted from the Set (it had been culled)
	Text    string // sheriff-visible notice for a signalled exit/core-dump, empty for a plain exit
}

// Supervisor owns spawn/signal/reap mechanics for Commands borrowed from a
// Deputy State's Set. It never stores Commands itself.
type Supervisor struct {
	log       *zap.Logger
	chunkSize int
	outputs   chan OutputEvent
	nextInst  atomic.Int64
}

// New returns a Supervisor that forwards captured child output in
// chunkSize-sized reads. chunkSize<1024 is raised to DefaultChunkSize.
func New(log *zap.Logger, chunkSize int) *Supervisor {
	if chunkSize < 1024 {
		chunkSize = DefaultChunkSize
	}
	return &Supervisor{
		log:       log.Named("supervisor"),
		chunkSize: chunkSize,
		outputs:   make(chan OutputEvent, 256),
	}
}

// Outputs is the event-loop readiness source for child output: every chunk
// read from a managed child's merged stdout/stderr arrives here, along with
// a terminal EOF/error event per instance.
func (s *Supervisor) Outputs() <-chan OutputEvent { return s.outputs }

// Add constructs a new stopped Command. The caller (the Reconciler) is
// responsible for inserting it into the Deputy State's Set.
func (s *Supervisor) Add(sheriffID int32, commandString, nickname, group string) *Command {
	return &Command{
		SheriffID:     sheriffID,
		CommandString: commandString,
		Nickname:      nickname,
		Group:         group,
	}
}

// Status reports whether cmd currently has a live child.
func (s *Supervisor) Status(cmd *Command) Status {
	if cmd.IsRunning() {
		return Running
	}
	return Stopped
}

// Start spawns cmd's command_string if it isn't already running. On
// success it registers a background reader for the merged stdout/stderr
// pipe (the loop-visible "readiness source") and sets actual_runid. On
// failure the Command is left with pid=0 so the next reconciliation can
// retry, per the spec's documented Open Question resolution.
func (s *Supervisor) Start(cmd *Command, runID int32) error {
	if cmd.IsRunning() {
		return nil
	}

	argv := strings.Fields(cmd.CommandString)
	if len(argv) == 0 {
		return fmt.Errorf("supervisor: empty command_string for sheriff_id=%d", cmd.SheriffID)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("supervisor: pipe: %w", err)
	}

	ecmd := exec.Command(argv[0], argv[1:]...)
	ecmd.Stdout = pw
	ecmd.Stderr = pw
	ecmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // isolates the child into its own group so Stop can signal -pid
	}

	if err := ecmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("supervisor: spawn %q: %w", cmd.CommandString, err)
	}

	// The parent's copy of the write end must close once the child has its
	// own duplicate, or reads on pr never see EOF.
	pw.Close()

	instance := s.nextInst.Add(1)
	cmd.cmd = ecmd
	cmd.pipeR = wrapFile(pr)
	cmd.PID = ecmd.Process.Pid
	cmd.ActualRunID = runID
	cmd.NumKillsSent = 0
	cmd.LastKillTime = time.Time{}
	cmd.outputID = instance

	s.log.Info("process started",
		zap.Int32("sheriff_id", cmd.SheriffID),
		zap.Int("pid", cmd.PID),
		zap.Int32("runid", runID))

	go readPipe(cmd.SheriffID, instance, pr, s.chunkSize, s.outputs)
	return nil
}

// Stop requests termination of cmd's running child, escalating from
// SIGTERM to SIGKILL across repeated calls at least killRateLimit apart.
// It never blocks waiting for the child to actually exit.
func (s *Supervisor) Stop(cmd *Command, now time.Time) error {
	if !cmd.IsRunning() {
		return nil
	}
	if !cmd.LastKillTime.IsZero() && now.Before(cmd.LastKillTime.Add(killRateLimit)) {
		return nil
	}

	sig := chooseSignal(cmd.NumKillsSent)

	err := s.KillCmd(cmd, sig)
	cmd.NumKillsSent++
	cmd.LastKillTime = now
	if err != nil {
		s.log.Warn("kill failed",
			zap.Int32("sheriff_id", cmd.SheriffID), zap.Int("pid", cmd.PID),
			zap.Int("sig", int(sig)), zap.Error(err))
	}
	return err
}

// KillCmd sends sig unconditionally to cmd's process group. It does not
// update the kill-rate-limit bookkeeping Stop maintains.
func (s *Supervisor) KillCmd(cmd *Command, sig syscall.Signal) error {
	if !cmd.IsRunning() {
		return nil
	}
	if err := syscall.Kill(-cmd.PID, sig); err != nil {
		return fmt.Errorf("supervisor: kill pid %d: %w", cmd.PID, err)
	}
	return nil
}

// ReapDead performs a non-blocking reap of every terminated child among
// set's Commands. For each reaped child it records exit metadata,
// deregisters its pipe if still open, and either deletes the Command (if
// RemoveRequested) or leaves it stopped with pid=0.
func (s *Supervisor) ReapDead(set *Set) []ReapResult {
	var results []ReapResult

	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			break
		}

		var found *Command
		for _, c := range set.All() {
			if c.PID == pid {
				found = c
				break
			}
		}
		if found == nil {
			// Not one of ours (e.g. a grandchild reparented to us); nothing
			// to report back to the sheriff.
			s.log.Debug("reaped unrecognized pid", zap.Int("pid", pid))
			continue
		}

		found.PID = 0
		found.ExitStatus = toExitStatus(ws)
		found.cmd = nil
		if found.pipeR != nil {
			_ = found.pipeR.Close()
			found.pipeR = nil
		}

		if found.ExitStatus.Signaled {
			s.log.Info("process terminated by signal",
				zap.Int32("sheriff_id", found.SheriffID), zap.Int("pid", pid),
				zap.String("signal", found.ExitStatus.Signal.String()),
				zap.Bool("core_dumped", found.ExitStatus.CoreDumped))
		} else {
			s.log.Info("process exited",
				zap.Int32("sheriff_id", found.SheriffID), zap.Int("pid", pid),
				zap.Int("exit_code", found.ExitStatus.ExitCode))
		}
		text := reapNoticeText(found.ExitStatus)

		removed := false
		if found.RemoveRequested {
			set.Delete(found.SheriffID)
			removed = true
		}
		results = append(results, ReapResult{Command: found, Removed: removed, Text: text})
	}

	return results
}

// RemoveAll stops every running child and removes every Command, waiting
// up to a bounded grace period for orderly exits before force-killing
// stragglers. It is only ever called from the deputy's shutdown sequence,
// the one place where the spec permits the loop to block briefly.
func (s *Supervisor) RemoveAll(set *Set, now func() time.Time, grace time.Duration) error {
	targets := set.All()
	for _, c := range targets {
		_ = s.Stop(c, now())
	}

	deadline := now().Add(grace)
	for now().Before(deadline) {
		s.ReapDead(set)
		allDone := true
		for _, c := range targets {
			if c.IsRunning() {
				allDone = false
			}
		}
		if allDone {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	var errs error
	for _, c := range targets {
		if c.IsRunning() {
			if err := s.KillCmd(c, syscall.SIGKILL); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	s.ReapDead(set)

	for _, c := range set.All() {
		set.Delete(c.SheriffID)
	}
	return errs
}

// chooseSignal picks the escalation signal for the (numKillsSent+1)'th
// send: sends 1-5 are SIGTERM, send 6 onward is SIGKILL.
func chooseSignal(numKillsSent int) syscall.Signal {
	if numKillsSent >= killEscalateAfter {
		return syscall.SIGKILL
	}
	return syscall.SIGTERM
}

// reapNoticeText formats the sheriff-visible printf for a reaped child, per
// spec.md §4.3 ("emit a printf describing signalled exit (if any) and
// core-dump (if any)") and §7's literal "Core dumped." requirement. A plain
// (non-signalled) exit has nothing to report.
func reapNoticeText(st ExitStatus) string {
	if !st.Signaled {
		return ""
	}
	text := fmt.Sprintf("terminated by signal %s", st.Signal)
	if st.CoreDumped {
		text += " Core dumped."
	}
	return text
}

func toExitStatus(ws syscall.WaitStatus) ExitStatus {
	st := ExitStatus{
		Exited:     ws.Exited(),
		Signaled:   ws.Signaled(),
		CoreDumped: ws.CoreDump(),
	}
	if ws.Exited() {
		st.ExitCode = ws.ExitStatus()
	}
	if ws.Signaled() {
		st.Signal = ws.Signal()
	}
	return st
}
