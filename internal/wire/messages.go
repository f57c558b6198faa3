// Package wire defines the deputy's external message shapes (spec.md §6)
// and strict JSON decoding for them. The transport and codec are out of
// scope for the control-plane core proper; this package is the minimal
// concrete contract the core needs to compile and run against a real bus.
package wire

// Orders is the full desired-state snapshot for one host, published by the
// sheriff on the orders channel.
type Orders struct {
	Host        string      `json:"host" validate:"required"`
	SheriffName string      `json:"sheriff_name" validate:"required"`
	Utime       int64       `json:"utime" validate:"required"`
	Ncmds       int         `json:"ncmds" validate:"gte=0"`
	Cmds        []OrderCmd  `json:"cmds" validate:"dive"`
}

// OrderCmd is one command entry within an Orders message.
type OrderCmd struct {
	Name         string `json:"name" validate:"required"`
	Nickname     string `json:"nickname"`
	Group        string `json:"group"`
	DesiredRunID int32  `json:"desired_runid"`
	SheriffID    int32  `json:"sheriff_id" validate:"required"`
	ForceQuit    bool   `json:"force_quit"`
}

// Info is the periodic full-state snapshot the deputy publishes.
type Info struct {
	Utime         int64     `json:"utime"`
	Host          string    `json:"host"`
	CPULoad       float64   `json:"cpu_load"`
	PhysMemTotal  uint64    `json:"phys_mem_total_bytes"`
	PhysMemFree   uint64    `json:"phys_mem_free_bytes"`
	SwapMemTotal  uint64    `json:"swap_mem_total_bytes"`
	SwapMemFree   uint64    `json:"swap_mem_free_bytes"`
	Cmds          []InfoCmd `json:"cmds"`
}

// InfoCmd is one command's entry within an Info snapshot.
type InfoCmd struct {
	Name          string  `json:"name"`
	Nickname      string  `json:"nickname"`
	ActualRunID   int32   `json:"actual_runid"`
	PID           int     `json:"pid"`
	ExitCode      int     `json:"exit_code"`
	SheriffID     int32   `json:"sheriff_id"`
	Group         string  `json:"group"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemVSizeBytes uint64  `json:"mem_vsize_bytes"`
	MemRSSBytes   uint64  `json:"mem_rss_bytes"`
}

// Printf is a single output/status line tagged with its originating
// command (or 0 for unattributed deputy-level notices).
type Printf struct {
	DeputyName string `json:"deputy_name"`
	SheriffID  int32  `json:"sheriff_id"`
	Text       string `json:"text"`
	Utime      int64  `json:"utime"`
}
