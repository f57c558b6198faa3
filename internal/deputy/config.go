// Package deputy wires the Resource Probe, Signal Bridge, Child
// Supervisor, Reconciler, Info Publisher and Event Loop together into a
// runnable daemon, and owns the CLI surface (spec.md §4.8, §6).
package deputy

import (
	"flag"
	"fmt"
	"os"
)

// Config is the Deputy Shell's parsed CLI surface (spec.md §6). DebugAddr
// is internal-only operator convenience, never documented to the
// sheriff protocol.
type Config struct {
	Verbose   bool
	Name      string
	LogPath   string
	LCMURL    string
	DebugAddr string
}

// ParseFlags parses args (normally os.Args[1:]) into a Config. Both the
// short and long spellings of every flag are registered against the same
// variable, since the stdlib flag package has no native long/short
// pairing.
func ParseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("deputyd", flag.ContinueOnError)

	var cfg Config
	for _, name := range []string{"v", "verbose"} {
		fs.BoolVar(&cfg.Verbose, name, false, "mirror printf output to stderr")
	}
	for _, name := range []string{"n", "name"} {
		fs.StringVar(&cfg.Name, name, "", "override hostname for deputy identity")
	}
	for _, name := range []string{"l", "log"} {
		fs.StringVar(&cfg.LogPath, name, "", "redirect stdout/stderr to PATH (append, line-buffered)")
	}
	for _, name := range []string{"u", "lcmurl"} {
		fs.StringVar(&cfg.LCMURL, name, "localhost:6379", "bus transport URL")
	}
	fs.StringVar(&cfg.DebugAddr, "debug-addr", "127.0.0.1:0", "internal debug HTTP surface address (0 disables)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: deputyd [-h] [-v] [-n NAME] [-l PATH] [-u URL]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveHostname returns cfg.Name if set, else the system hostname.
func ResolveHostname(cfg Config) (string, error) {
	if cfg.Name != "" {
		return cfg.Name, nil
	}
	return os.Hostname()
}
