// Package state holds the Deputy State: the single mutable record the
// event loop owns and every other component borrows from, per spec.md §3.
package state

import (
	"github.com/google/uuid"

	"github.com/edirooss/procman-deputy/internal/resourceprobe"
	"github.com/edirooss/procman-deputy/internal/supervisor"
)

// Counters tracks sheriff-observation bookkeeping since the last
// introspection mark (spec.md §3, §4.7).
type Counters struct {
	OrdersSeen       int64
	OrdersForMe      int64
	StaleOrders      int64
	ObservedSheriffs map[string]struct{}
	LastSheriffName  string
}

// Reset zeroes every counter and frees the observed-sheriffs set, per the
// introspection mark contract (spec.md §4.7).
func (c *Counters) Reset() {
	c.OrdersSeen = 0
	c.OrdersForMe = 0
	c.StaleOrders = 0
	c.ObservedSheriffs = make(map[string]struct{})
}

// State is the Deputy State: this deputy's identity, its managed command
// set, and the system resource snapshots used to derive cpu_load.
type State struct {
	Host   string
	BootID uuid.UUID

	Commands *supervisor.Set

	PrevSystem resourceprobe.SystemSnapshot
	CurSystem  resourceprobe.SystemSnapshot

	Counters Counters
}

// New constructs an empty Deputy State for host, with a fresh BootID.
func New(host string) *State {
	return &State{
		Host:     host,
		BootID:   uuid.New(),
		Commands: supervisor.NewSet(),
		Counters: Counters{ObservedSheriffs: make(map[string]struct{})},
	}
}
