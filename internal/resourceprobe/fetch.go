package resourceprobe

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchAll gathers one system snapshot and one per-pid snapshot for every
// tracked pid within a single tick, bounding the tick's wall-clock cost to
// the slowest individual read instead of their sum. A failed per-pid read
// is recorded as a zero-valued snapshot (the caller substitutes zeros per
// the Probe contract) rather than failing the whole tick; only a failed
// system read aborts the tick.
func FetchAll(ctx context.Context, probe Probe, pids []int) (SystemSnapshot, map[int]ProcessSnapshot, error) {
	g, _ := errgroup.WithContext(ctx)

	var sys SystemSnapshot
	g.Go(func() error {
		s, err := probe.ReadSystem()
		if err != nil {
			return err
		}
		sys = s
		return nil
	})

	procs := make(map[int]ProcessSnapshot, len(pids))
	var mu sync.Mutex
	for _, pid := range pids {
		pid := pid
		g.Go(func() error {
			snap, err := probe.ReadProcess(pid)
			if err != nil {
				snap = ProcessSnapshot{}
			}
			mu.Lock()
			procs[pid] = snap
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return SystemSnapshot{}, nil, err
	}
	return sys, procs, nil
}
