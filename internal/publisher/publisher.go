// Package publisher builds and emits the printf and info messages the
// Reconciler, Supervisor and Event Loop hand it, per spec.md §4.5. It is
// the only component that writes to the bus.
package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/bus"
	"github.com/edirooss/procman-deputy/internal/state"
	"github.com/edirooss/procman-deputy/internal/supervisor"
	"github.com/edirooss/procman-deputy/internal/wire"
)

// Publisher emits printf and info messages onto the bus on behalf of
// every other component. It satisfies reconciler.PrintfSink.
type Publisher struct {
	log        *zap.Logger
	bus        bus.Bus
	deputyName string
	verbose    bool
	verboseOut io.Writer
	now        func() time.Time
}

// New constructs a Publisher. verbose mirrors every printf's text to
// verboseOut (nil defaults to os.Stderr) — the same stream -l/--log
// redirects, per spec.md §6 and §4.5.
func New(log *zap.Logger, b bus.Bus, deputyName string, verbose bool, verboseOut io.Writer) *Publisher {
	if verboseOut == nil {
		verboseOut = os.Stderr
	}
	return &Publisher{
		log:        log.Named("publisher"),
		bus:        b,
		deputyName: deputyName,
		verbose:    verbose,
		verboseOut: verboseOut,
		now:        time.Now,
	}
}

// Notify emits one printf message tagged with sheriffID (0 for
// unattributed deputy-level notices). Implements reconciler.PrintfSink.
func (p *Publisher) Notify(sheriffID int32, text string) {
	p.publishPrintf(sheriffID, text)
}

// PublishOutput forwards a child's captured output chunk verbatim as a
// printf message, preserving byte fidelity modulo chunk boundaries
// (spec.md §8 property 9). EOF markers without text are not forwarded;
// a non-nil Err produces a single human-readable notice instead.
func (p *Publisher) PublishOutput(ev supervisor.OutputEvent) {
	switch {
	case ev.Err != nil:
		p.publishPrintf(ev.SheriffID, fmt.Sprintf("read error: %v", ev.Err))
	case ev.EOF:
		// Plain EOF with no error carries no text; the supervisor's reap
		// path reports a signalled termination separately, and a plain
		// exit produces no notice.
	case ev.Text != "":
		p.publishPrintf(ev.SheriffID, ev.Text)
	}
}

func (p *Publisher) publishPrintf(sheriffID int32, text string) {
	msg := wire.Printf{
		DeputyName: p.deputyName,
		SheriffID:  sheriffID,
		Text:       text,
		Utime:      p.now().UnixMicro(),
	}

	if p.verbose {
		fmt.Fprintf(p.verboseOut, "[%d] %s\n", sheriffID, text)
	}

	payload, err := wire.EncodePrintf(msg)
	if err != nil {
		p.log.Error("encode printf failed", zap.Error(err))
		return
	}
	if err := p.bus.Publish(context.Background(), bus.PrintfChannel, payload); err != nil {
		p.log.Warn("publish printf failed", zap.Error(err))
	}
}

// BuildInfo assembles the full per-tick state snapshot from st and the
// latest system CPU load, without publishing it. Exposed so the event
// loop can cache the same snapshot it publishes for the debug surface
// (spec.md SPEC_FULL §4.11).
func (p *Publisher) BuildInfo(st *state.State, cpuLoad float64) wire.Info {
	info := wire.Info{
		Utime:        p.now().UnixMicro(),
		Host:         st.Host,
		CPULoad:      cpuLoad,
		PhysMemTotal: st.CurSystem.PhysTotalKB * 1024,
		PhysMemFree:  st.CurSystem.PhysFreeKB * 1024,
		SwapMemTotal: st.CurSystem.SwapTotalKB * 1024,
		SwapMemFree:  st.CurSystem.SwapFreeKB * 1024,
	}

	for _, cmd := range st.Commands.All() {
		info.Cmds = append(info.Cmds, wire.InfoCmd{
			Name:          cmd.CommandString,
			Nickname:      cmd.Nickname,
			ActualRunID:   cmd.ActualRunID,
			PID:           cmd.PID,
			ExitCode:      cmd.ExitStatus.ExitCode,
			SheriffID:     cmd.SheriffID,
			Group:         cmd.Group,
			CPUUsage:      cmd.CPUUsage,
			MemVSizeBytes: cmd.CurProc.VSizeBytes,
			MemRSSBytes:   cmd.CurProc.RSSBytes,
		})
	}

	return info
}

// PublishInfo builds and publishes the per-tick state snapshot (spec.md
// §4.5). Called on the 1 Hz timer and opportunistically whenever the
// reconciler or reap path reports action.
func (p *Publisher) PublishInfo(st *state.State, cpuLoad float64) wire.Info {
	info := p.BuildInfo(st, cpuLoad)

	payload, err := wire.EncodeInfo(info)
	if err != nil {
		p.log.Error("encode info failed", zap.Error(err))
		return info
	}
	if err := p.bus.Publish(context.Background(), bus.InfoChannel, payload); err != nil {
		p.log.Warn("publish info failed", zap.Error(err))
	}
	return info
}
