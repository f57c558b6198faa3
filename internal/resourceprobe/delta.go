package resourceprobe

// CPULoad computes the host CPU load fraction between two system snapshots,
// a newer against an older. Per the accounting contract: if the elapsed
// jiffy window is zero, load is reported as zero rather than dividing by
// zero.
func CPULoad(newer, older SystemSnapshot) float64 {
	elapsed, loaded := delta(newer, older)
	if elapsed == 0 {
		return 0
	}
	return float64(loaded) / float64(elapsed)
}

func delta(a, b SystemSnapshot) (elapsed, loaded uint64) {
	elapsed = (a.User - b.User) + (a.UserLow - b.UserLow) + (a.System - b.System) + (a.Idle - b.Idle)
	loaded = (a.User - b.User) + (a.UserLow - b.UserLow) + (a.System - b.System)
	return elapsed, loaded
}

// ProcessUsage computes one process's share of host CPU time between two
// per-process snapshots, given the host-wide elapsed jiffy window over the
// same interval. A zero elapsed window, or either snapshot being the
// unset zero value, yields a usage of zero.
func ProcessUsage(elapsed uint64, newer, older ProcessSnapshot) float64 {
	if elapsed == 0 || isZero(newer) || isZero(older) {
		return 0
	}
	used := (newer.UserJiffies - older.UserJiffies) + (newer.SystemJiffies - older.SystemJiffies)
	return float64(used) / float64(elapsed)
}

func isZero(s ProcessSnapshot) bool {
	return s.UserJiffies == 0 && s.SystemJiffies == 0 && s.VSizeBytes == 0 && s.RSSBytes == 0
}

// Elapsed exposes the host-wide elapsed jiffy window between two system
// snapshots, for callers (the event loop) that need it to feed
// ProcessUsage.
func Elapsed(newer, older SystemSnapshot) uint64 {
	elapsed, _ := delta(newer, older)
	return elapsed
}
