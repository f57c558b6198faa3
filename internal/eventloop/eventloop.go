// Package eventloop implements the single-threaded cooperative
// dispatcher, spec.md §4.6: it is the only goroutine allowed to mutate
// Deputy State, multiplexing bus receipts, signal events, child output,
// and the two timers over one select.
package eventloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/introspect"
	"github.com/edirooss/procman-deputy/internal/publisher"
	"github.com/edirooss/procman-deputy/internal/reconciler"
	"github.com/edirooss/procman-deputy/internal/resourceprobe"
	"github.com/edirooss/procman-deputy/internal/signalbridge"
	"github.com/edirooss/procman-deputy/internal/state"
	"github.com/edirooss/procman-deputy/internal/supervisor"
	"github.com/edirooss/procman-deputy/internal/wire"
)

// InfoTick is the 1 Hz resource-probe-refresh-and-broadcast cadence
// (spec.md §4.6 source 4).
const InfoTick = time.Second

// Loop owns the Deputy State and drives every other component. All of
// its fields below are touched only from Run's goroutine.
type Loop struct {
	log *zap.Logger

	st  *state.State
	sup *supervisor.Supervisor
	pub *publisher.Publisher

	bridge   *signalbridge.Bridge
	ordersCh <-chan []byte
	probe    resourceprobe.Probe

	lastInfo wire.Info
	lastMark introspect.Snapshot

	now func() time.Time
}

// New wires together a fully constructed Loop. ordersCh is the channel
// returned by Bus.Subscribe on the orders channel.
func New(log *zap.Logger, st *state.State, sup *supervisor.Supervisor, pub *publisher.Publisher, bridge *signalbridge.Bridge, ordersCh <-chan []byte, probe resourceprobe.Probe) *Loop {
	return &Loop{
		log:      log.Named("eventloop"),
		st:       st,
		sup:      sup,
		pub:      pub,
		bridge:   bridge,
		ordersCh: ordersCh,
		probe:    probe,
		now:      time.Now,
	}
}

// LastInfo implements debugsrv.Source.
func (l *Loop) LastInfo() wire.Info { return l.lastInfo }

// LastMark implements debugsrv.Source.
func (l *Loop) LastMark() introspect.Snapshot { return l.lastMark }

// Run blocks until a termination signal is observed, ctx is cancelled, or
// the orders channel closes, running remove_all before returning in every
// case.
func (l *Loop) Run(ctx context.Context) error {
	infoTicker := time.NewTicker(InfoTick)
	defer infoTicker.Stop()
	markTicker := time.NewTicker(introspect.Interval)
	defer markTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.shutdown()

		case payload, ok := <-l.ordersCh:
			if !ok {
				l.log.Error("orders channel closed; bus connection lost")
				return l.shutdown()
			}
			l.handleOrders(payload)

		case ev := <-l.sup.Outputs():
			if l.shouldForwardOutput(ev) {
				l.pub.PublishOutput(ev)
			}

		case <-l.bridge.Readable():
			if l.handleSignals() {
				return l.shutdown()
			}

		case <-infoTicker.C:
			l.refreshResources(ctx)
			l.lastInfo = l.pub.PublishInfo(l.st, l.currentCPULoad())

		case <-markTicker.C:
			l.lastMark = introspect.Mark(l.log, l.probe, l.st)
		}
	}
}

// shouldForwardOutput reports whether ev belongs to the instance currently
// tracked for its command, dropping output from a restart that has since
// been superseded (or from a command culled outright) per the output
// token's documented purpose.
func (l *Loop) shouldForwardOutput(ev supervisor.OutputEvent) bool {
	cmd, ok := l.st.Commands.Get(ev.SheriffID)
	return ok && cmd.OutputInstance() == ev.Instance()
}

func (l *Loop) handleOrders(payload []byte) {
	orders, err := wire.DecodeOrders(payload)
	if err != nil {
		l.log.Warn("dropping malformed orders payload", zap.Error(err))
		return
	}

	counters := reconciler.Counters{
		OrdersSeen:       &l.st.Counters.OrdersSeen,
		OrdersForMe:      &l.st.Counters.OrdersForMe,
		StaleOrders:      &l.st.Counters.StaleOrders,
		ObservedSheriffs: l.st.Counters.ObservedSheriffs,
		LastSheriffName:  &l.st.Counters.LastSheriffName,
	}

	res := reconciler.Reconcile(l.log, l.sup, l.st.Commands, counters, l.pub, l.st.Host, orders, l.now())
	if res.Acted {
		l.lastInfo = l.pub.PublishInfo(l.st, l.currentCPULoad())
	}
}

// handleSignals drains the bridge and processes every coalesced kind.
// It returns true if a termination signal was observed.
func (l *Loop) handleSignals() bool {
	terminate := false
	for _, kind := range l.bridge.Drain() {
		switch kind {
		case signalbridge.ChildExited:
			results := l.sup.ReapDead(l.st.Commands)
			for _, r := range results {
				if r.Text != "" {
					l.pub.Notify(r.Command.SheriffID, r.Text)
				}
			}
			if len(results) > 0 {
				l.lastInfo = l.pub.PublishInfo(l.st, l.currentCPULoad())
			}
		case signalbridge.Terminate:
			terminate = true
		}
	}
	return terminate
}

func (l *Loop) refreshResources(ctx context.Context) {
	pids := make([]int, 0, l.st.Commands.Len())
	for _, cmd := range l.st.Commands.All() {
		if cmd.IsRunning() {
			pids = append(pids, cmd.PID)
		}
	}

	sys, procs, err := resourceprobe.FetchAll(ctx, l.probe, pids)
	if err != nil {
		l.log.Warn("resource probe failed", zap.Error(err))
		return
	}

	l.st.PrevSystem = l.st.CurSystem
	l.st.CurSystem = sys

	elapsed := resourceprobe.Elapsed(l.st.CurSystem, l.st.PrevSystem)
	for _, cmd := range l.st.Commands.All() {
		cur, ok := procs[cmd.PID]
		if !ok {
			continue
		}
		cmd.PrevProc = cmd.CurProc
		cmd.CurProc = cur
		cmd.CPUUsage = resourceprobe.ProcessUsage(elapsed, cmd.CurProc, cmd.PrevProc)
	}
}

func (l *Loop) currentCPULoad() float64 {
	return resourceprobe.CPULoad(l.st.CurSystem, l.st.PrevSystem)
}

func (l *Loop) shutdown() error {
	l.log.Info("shutting down")
	if err := l.sup.RemoveAll(l.st.Commands, time.Now, 3*time.Second); err != nil {
		l.log.Warn("remove_all reported errors", zap.Error(err))
	}
	l.bridge.Close()
	return nil
}
