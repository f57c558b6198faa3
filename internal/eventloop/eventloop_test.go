package eventloop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/procman-deputy/internal/bus"
	"github.com/edirooss/procman-deputy/internal/publisher"
	"github.com/edirooss/procman-deputy/internal/resourceprobe"
	"github.com/edirooss/procman-deputy/internal/signalbridge"
	"github.com/edirooss/procman-deputy/internal/state"
	"github.com/edirooss/procman-deputy/internal/supervisor"
	"github.com/edirooss/procman-deputy/internal/wire"
)

func newTestLoop(t *testing.T) (*Loop, chan []byte, *bus.Fake) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "meminfo"), []byte(
		"MemTotal:       1000 kB\nMemFree:         500 kB\nSwapTotal:        0 kB\nSwapFree:         0 kB\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stat"), []byte(
		"cpu  10 0 5 85 0 0 0 0 0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := resourceprobe.NewAt(root)
	st := state.New("h")
	sup := supervisor.New(zap.NewNop(), 0)
	b := bus.NewFake()
	pub := publisher.New(zap.NewNop(), b, "h", false, nil)
	bridge := signalbridge.New()

	ordersCh := make(chan []byte, 4)
	l := New(zap.NewNop(), st, sup, pub, bridge, ordersCh, probe)
	return l, ordersCh, b
}

func TestHandleOrdersSpawnsCommand(t *testing.T) {
	l, _, _ := newTestLoop(t)
	defer l.bridge.Close()

	orders := wire.Orders{Host: "h", SheriffName: "bob", Utime: time.Now().UnixMicro(),
		Cmds: []wire.OrderCmd{{Name: "/bin/true", SheriffID: 1, DesiredRunID: 1}}}
	raw, err := json.Marshal(orders)
	if err != nil {
		t.Fatalf("marshal orders: %v", err)
	}
	l.handleOrders(raw)

	cmd, ok := l.st.Commands.Get(1)
	if !ok {
		t.Fatal("expected command tracked after handleOrders")
	}
	if !cmd.IsRunning() {
		t.Fatal("expected command running after spawn")
	}

	_ = l.sup.KillCmd(cmd, syscall.SIGKILL)
	waitReap(t, l)
}

func TestHandleSignalsReapsOnChildExited(t *testing.T) {
	l, _, _ := newTestLoop(t)
	defer l.bridge.Close()

	cmd := l.sup.Add(1, "/bin/true", "t", "g")
	if err := l.sup.Start(cmd, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.st.Commands.Add(cmd)

	drainOutputs(t, l.sup, cmd.SheriffID)

	// The real OS delivers SIGCHLD to this test process once /bin/true
	// exits; wait for the bridge to surface it, then dispatch exactly the
	// way Run's select loop would.
	select {
	case <-l.bridge.Readable():
		l.handleSignals()
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for SIGCHLD via the bridge")
	}

	if cmd.PID != 0 {
		t.Fatal("expected command reaped via handleSignals")
	}
}

func TestHandleSignalsNotifiesSheriffOnSignalTermination(t *testing.T) {
	l, _, b := newTestLoop(t)
	defer l.bridge.Close()

	printfCh, err := b.Subscribe(context.Background(), bus.PrintfChannel)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	cmd := l.sup.Add(1, "/bin/sleep 5", "t", "g")
	if err := l.sup.Start(cmd, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.st.Commands.Add(cmd)

	if err := l.sup.KillCmd(cmd, syscall.SIGTERM); err != nil {
		t.Fatalf("KillCmd: %v", err)
	}
	drainOutputs(t, l.sup, cmd.SheriffID)

	select {
	case <-l.bridge.Readable():
		l.handleSignals()
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for SIGCHLD via the bridge")
	}

	select {
	case payload := <-printfCh:
		var msg wire.Printf
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.SheriffID != 1 || !strings.Contains(msg.Text, "terminated by signal") {
			t.Fatalf("unexpected termination notice: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for termination notice on the printf channel")
	}
}

func TestShouldForwardOutputDropsSupersededInstance(t *testing.T) {
	l, _, _ := newTestLoop(t)
	defer l.bridge.Close()

	cmd := l.sup.Add(1, "/bin/sh -c sleep 5", "t", "g")
	if err := l.sup.Start(cmd, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.st.Commands.Add(cmd)

	// Capture a real OutputEvent tagged with the first instance.
	var firstInstanceEvent supervisor.OutputEvent
	select {
	case firstInstanceEvent = <-l.sup.Outputs():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first instance's output event")
	}

	if !l.shouldForwardOutput(firstInstanceEvent) {
		t.Fatal("expected output from the currently-tracked instance to be forwarded")
	}

	_ = l.sup.KillCmd(cmd, syscall.SIGKILL)
	waitReap(t, l)

	if err := l.sup.Start(cmd, 2); err != nil {
		t.Fatalf("restart Start: %v", err)
	}

	if l.shouldForwardOutput(firstInstanceEvent) {
		t.Fatal("expected output tagged with a superseded instance to be dropped")
	}

	_ = l.sup.KillCmd(cmd, syscall.SIGKILL)
	waitReap(t, l)
}

func TestRefreshResourcesPopulatesSystemSnapshot(t *testing.T) {
	l, _, _ := newTestLoop(t)
	defer l.bridge.Close()

	l.refreshResources(context.Background())
	if l.st.CurSystem.User == 0 && l.st.CurSystem.System == 0 {
		t.Fatal("expected system snapshot to be populated")
	}
}

func waitReap(t *testing.T, l *Loop) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if results := l.sup.ReapDead(l.st.Commands); len(results) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for reap")
}

func drainOutputs(t *testing.T, s *supervisor.Supervisor, sheriffID int32) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.Outputs():
			if ev.SheriffID != sheriffID {
				continue
			}
			if ev.EOF {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for output EOF")
		}
	}
}
