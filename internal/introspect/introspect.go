// Package introspect implements the periodic self-accounting mark,
// spec.md §4.7: every 120s, log a summary of sheriff-observation
// counters and this deputy's own resource usage, then reset the
// counters.
package introspect

import (
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/resourceprobe"
	"github.com/edirooss/procman-deputy/internal/state"
)

// Interval is the fixed cadence of an introspection mark (spec.md §4.6
// source 5).
const Interval = 120 * time.Second

// Snapshot is the last mark's published counters, exposed read-only to
// the debug HTTP surface (SPEC_FULL §4.11's GET /debug/marks).
type Snapshot struct {
	At               time.Time
	OrdersSeen       int64
	OrdersForMe      int64
	StaleOrders      int64
	ObservedSheriffs []string
	LastSheriffName  string
	SelfRSSBytes     uint64
	SelfVSizeBytes   uint64
	LiveChildren     int
}

// Mark snapshots st's own process usage via probe, logs a summary of the
// counters accumulated since the last mark, resets them, and returns the
// snapshot for the debug surface to serve.
func Mark(log *zap.Logger, probe resourceprobe.Probe, st *state.State) Snapshot {
	self, err := probe.ReadProcess(selfPID())
	if err != nil {
		log.Warn("introspection self-probe failed", zap.Error(err))
	}

	live := 0
	for _, cmd := range st.Commands.All() {
		if cmd.IsRunning() {
			live++
		}
	}

	sheriffs := make([]string, 0, len(st.Counters.ObservedSheriffs))
	for name := range st.Counters.ObservedSheriffs {
		sheriffs = append(sheriffs, name)
	}

	snap := Snapshot{
		At:               time.Now(),
		OrdersSeen:       st.Counters.OrdersSeen,
		OrdersForMe:      st.Counters.OrdersForMe,
		StaleOrders:      st.Counters.StaleOrders,
		ObservedSheriffs: sheriffs,
		LastSheriffName:  st.Counters.LastSheriffName,
		SelfRSSBytes:     self.RSSBytes,
		SelfVSizeBytes:   self.VSizeBytes,
		LiveChildren:     live,
	}

	log.Info("mark",
		zap.Int64("orders_seen", snap.OrdersSeen),
		zap.Int64("orders_for_me", snap.OrdersForMe),
		zap.Int64("stale_orders", snap.StaleOrders),
		zap.Strings("observed_sheriffs", snap.ObservedSheriffs),
		zap.Int("live_children", snap.LiveChildren),
		zap.Uint64("self_rss_bytes", snap.SelfRSSBytes),
	)

	st.Counters.Reset()
	return snap
}
