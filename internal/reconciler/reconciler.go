// Package reconciler maps an incoming orders snapshot onto the Supervisor's
// child set: add / rename / regroup / start / stop / remove, exactly per
// spec.md §4.4.
package reconciler

import (
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/supervisor"
	"github.com/edirooss/procman-deputy/internal/wire"
)

// MaxMessageAge is the staleness threshold against orders.Utime, defined by
// the (out-of-scope) wire protocol and treated here as a constant per
// spec.md §4.4 step 3.
const MaxMessageAge = 30 * time.Second

// Controller is the subset of Supervisor the Reconciler drives. It is an
// interface so tests can substitute a fake without spawning real processes.
type Controller interface {
	Add(sheriffID int32, commandString, nickname, group string) *supervisor.Command
	Start(cmd *supervisor.Command, runID int32) error
	Stop(cmd *supervisor.Command, now time.Time) error
}

// Counters is the subset of Deputy State's introspection bookkeeping the
// Reconciler updates (spec.md §3, §4.7).
type Counters struct {
	OrdersSeen       *int64
	OrdersForMe      *int64
	StaleOrders      *int64
	ObservedSheriffs map[string]struct{}
	LastSheriffName  *string
}

// PrintfSink receives the printf-shaped notices the Reconciler emits
// directly (stale-orders notices tagged per command, spec.md §4.4 step 3).
type PrintfSink interface {
	Notify(sheriffID int32, text string)
}

// Result reports what the Reconciler did, so callers (the event loop) know
// whether to trigger the "beyond cadence" broadcast from spec.md §4.4
// step 7.
type Result struct {
	Acted bool
}

// Reconcile applies one orders snapshot to set, per spec.md §4.4. host is
// this deputy's own identity; every message bumps orders_seen, and orders
// not addressed to host are then ignored (step 1) without touching any
// other counter.
func Reconcile(log *zap.Logger, ctl Controller, set *supervisor.Set, counters Counters, sink PrintfSink, host string, orders wire.Orders, now time.Time) Result {
	*counters.OrdersSeen++

	if orders.Host != host {
		return Result{}
	}

	*counters.OrdersForMe++

	if now.Sub(microsToTime(orders.Utime)) > MaxMessageAge {
		*counters.StaleOrders++
		for _, o := range orders.Cmds {
			sink.Notify(o.SheriffID, "stale orders: message too old, ignored")
		}
		return Result{}
	}

	counters.ObservedSheriffs[orders.SheriffName] = struct{}{}
	*counters.LastSheriffName = orders.SheriffName

	acted := false
	seen := make(map[int32]struct{}, len(orders.Cmds))

	for _, o := range orders.Cmds {
		seen[o.SheriffID] = struct{}{}

		cmd, ok := set.Get(o.SheriffID)
		if !ok {
			cmd = ctl.Add(o.SheriffID, o.Name, o.Nickname, o.Group)
			cmd.ActualRunID = 0
			set.Add(cmd)
		}

		if cmd.CommandString != o.Name {
			// Rename never restarts a running child; it takes effect the
			// next time this command is started (spec.md §4.4 edge cases).
			cmd.CommandString = o.Name
		}
		if cmd.Nickname != o.Nickname {
			cmd.Nickname = o.Nickname
		}
		if cmd.Group != o.Group {
			cmd.Group = o.Group
		}

		running := cmd.IsRunning()
		runidEqual := cmd.ActualRunID == o.DesiredRunID

		switch {
		case !running && !runidEqual && !o.ForceQuit:
			if err := ctl.Start(cmd, o.DesiredRunID); err != nil {
				log.Warn("spawn failed", zap.Int32("sheriff_id", cmd.SheriffID), zap.Error(err))
				sink.Notify(cmd.SheriffID, "spawn failed: "+err.Error())
			} else {
				cmd.ActualRunID = o.DesiredRunID
			}
			acted = true

		case running && (o.ForceQuit || !runidEqual):
			if err := ctl.Stop(cmd, now); err != nil {
				sink.Notify(cmd.SheriffID, "kill failed: "+err.Error())
			}
			acted = true

		default:
			cmd.ActualRunID = o.DesiredRunID
		}
	}

	// Cull: any local command absent from this order batch.
	for _, cmd := range set.All() {
		if _, ok := seen[cmd.SheriffID]; ok {
			continue
		}
		if cmd.IsRunning() {
			cmd.RemoveRequested = true
			if err := ctl.Stop(cmd, now); err != nil {
				sink.Notify(cmd.SheriffID, "kill failed: "+err.Error())
			}
		} else {
			set.Delete(cmd.SheriffID)
		}
		acted = true
	}

	return Result{Acted: acted}
}

func microsToTime(us int64) time.Time {
	return time.UnixMicro(us)
}
