// Package resourceprobe takes one-shot snapshots of system and per-pid
// CPU/memory counters. It never retains state between calls; deltas are
// computed by whoever keeps the previous snapshot (see CPULoad,
// ProcessUsage, Elapsed).
package resourceprobe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SystemSnapshot is one reading of host-wide memory and CPU jiffy counters.
type SystemSnapshot struct {
	PhysTotalKB uint64
	PhysFreeKB  uint64
	SwapTotalKB uint64
	SwapFreeKB  uint64

	User    uint64
	UserLow uint64
	System  uint64
	Idle    uint64
}

// ProcessSnapshot is one reading of a single pid's CPU/memory counters.
type ProcessSnapshot struct {
	UserJiffies   uint64
	SystemJiffies uint64
	VSizeBytes    uint64
	RSSBytes      uint64
}

// Probe takes stateless snapshots. Implementations must never block the
// caller indefinitely; a read that fails returns a zero-valued snapshot
// plus a non-nil error, and callers substitute zeros rather than abort.
type Probe interface {
	ReadSystem() (SystemSnapshot, error)
	ReadProcess(pid int) (ProcessSnapshot, error)
}

// procProbe reads Linux /proc. root is overridable so tests can point it at
// a fixture directory instead of the real /proc.
type procProbe struct {
	root string
}

// New returns a Probe backed by the real /proc filesystem.
func New() Probe { return &procProbe{root: "/proc"} }

// NewAt returns a Probe rooted at an arbitrary directory, for tests.
func NewAt(root string) Probe { return &procProbe{root: root} }

// ReadSystem parses /proc/meminfo and the aggregate cpu line of /proc/stat.
func (p *procProbe) ReadSystem() (SystemSnapshot, error) {
	var snap SystemSnapshot

	mem, err := readMeminfo(p.root + "/meminfo")
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("resourceprobe: read meminfo: %w", err)
	}
	snap.PhysTotalKB = mem["MemTotal"]
	snap.PhysFreeKB = mem["MemFree"]
	snap.SwapTotalKB = mem["SwapTotal"]
	snap.SwapFreeKB = mem["SwapFree"]

	user, userLow, sys, idle, err := readCPULine(p.root + "/stat")
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("resourceprobe: read stat: %w", err)
	}
	snap.User, snap.UserLow, snap.System, snap.Idle = user, userLow, sys, idle

	return snap, nil
}

// ReadProcess parses /proc/<pid>/stat for jiffy and memory counters.
func (p *procProbe) ReadProcess(pid int) (ProcessSnapshot, error) {
	path := fmt.Sprintf("%s/%d/stat", p.root, pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessSnapshot{}, fmt.Errorf("resourceprobe: read %s: %w", path, err)
	}

	// Field 2 (comm) may contain spaces/parens; locate its closing paren
	// and parse everything after it by position, same as ps(1) does.
	close := strings.LastIndexByte(string(data), ')')
	if close < 0 || close+2 >= len(data) {
		return ProcessSnapshot{}, fmt.Errorf("resourceprobe: malformed stat line for pid %d", pid)
	}
	fields := strings.Fields(string(data[close+2:]))
	// After splitting off "pid (comm)", field index 0 is field 3 (state).
	// utime=14, stime=15, vsize=23, rss=24 in the full 1-indexed /proc stat
	// field list; relative to our slice (which starts at field 3) that's
	// indices 11, 12, 20, 21.
	const (
		idxUtime = 14 - 3
		idxStime = 15 - 3
		idxVsize = 23 - 3
		idxRss   = 24 - 3
	)
	if len(fields) <= idxRss {
		return ProcessSnapshot{}, fmt.Errorf("resourceprobe: short stat line for pid %d", pid)
	}

	utime, _ := strconv.ParseUint(fields[idxUtime], 10, 64)
	stime, _ := strconv.ParseUint(fields[idxStime], 10, 64)
	vsize, _ := strconv.ParseUint(fields[idxVsize], 10, 64)
	rssPages, _ := strconv.ParseUint(fields[idxRss], 10, 64)

	const pageSize = 4096 // matches the common Linux page size; good enough for accounting
	return ProcessSnapshot{
		UserJiffies:   utime,
		SystemJiffies: stime,
		VSizeBytes:    vsize,
		RSSBytes:      rssPages * pageSize,
	}, nil
}

func readMeminfo(path string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]uint64, 8)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := line[:colon]
		rest := strings.Fields(line[colon+1:])
		if len(rest) == 0 {
			continue
		}
		v, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			continue
		}
		out[key] = v
	}
	return out, sc.Err()
}

func readCPULine(path string) (user, userLow, system, idle uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, 0, 0, fmt.Errorf("resourceprobe: empty %s", path)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, 0, 0, fmt.Errorf("resourceprobe: unexpected cpu line %q", sc.Text())
	}
	user, _ = strconv.ParseUint(fields[1], 10, 64)
	userLow, _ = strconv.ParseUint(fields[2], 10, 64)
	system, _ = strconv.ParseUint(fields[3], 10, 64)
	idle, _ = strconv.ParseUint(fields[4], 10, 64)
	return user, userLow, system, idle, nil
}
