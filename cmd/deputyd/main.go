// Command deputyd is the procman deputy daemon: one instance runs per
// host, receiving orders over the bus and reconciling the local child
// set against them (spec.md §1).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edirooss/procman-deputy/internal/deputy"
)

func main() {
	cfg, err := deputy.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sh, err := deputy.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "deputyd: fatal:", err)
		os.Exit(1)
	}

	// Termination is driven entirely by the Signal Bridge inside the
	// event loop (spec.md §4.2, §4.6); Run returns once it has observed
	// SIGINT/SIGHUP/SIGQUIT/SIGTERM and completed remove_all.
	if err := sh.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "deputyd: exited with error:", err)
		os.Exit(1)
	}
}
