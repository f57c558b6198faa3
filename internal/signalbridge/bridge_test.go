package signalbridge

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestBridgeCoalescesRepeatedSignal(t *testing.T) {
	b := New()
	defer b.Close()

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := proc.Signal(syscall.SIGHUP); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-b.Readable():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal bridge readiness")
	}
	// Allow any remaining coalesced deliveries to land before draining.
	time.Sleep(50 * time.Millisecond)

	kinds := b.Drain()
	if len(kinds) != 1 || kinds[0] != Terminate {
		t.Fatalf("expected exactly one coalesced Terminate event, got %v", kinds)
	}

	if more := b.Drain(); len(more) != 0 {
		t.Fatalf("expected empty drain after consuming pending set, got %v", more)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		sig  os.Signal
		kind Kind
		ok   bool
	}{
		{syscall.SIGCHLD, ChildExited, true},
		{syscall.SIGINT, Terminate, true},
		{syscall.SIGHUP, Terminate, true},
		{syscall.SIGQUIT, Terminate, true},
		{syscall.SIGTERM, Terminate, true},
		{syscall.SIGUSR1, 0, false},
	}
	for _, c := range cases {
		k, ok := classify(c.sig)
		if ok != c.ok || (ok && k != c.kind) {
			t.Errorf("classify(%v) = (%v,%v), want (%v,%v)", c.sig, k, ok, c.kind, c.ok)
		}
	}
}
