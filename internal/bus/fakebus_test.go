package bus

import (
	"context"
	"testing"
	"time"
)

func TestFakeBusPublishSubscribe(t *testing.T) {
	b := NewFake()
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, OrdersChannel)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(ctx, OrdersChannel, []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if string(got) != "hello" {
			t.Fatalf("got %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published payload")
	}
}

func TestFakeBusIgnoresUnrelatedChannel(t *testing.T) {
	b := NewFake()
	ctx := context.Background()

	ch, _ := b.Subscribe(ctx, OrdersChannel)
	_ = b.Publish(ctx, InfoChannel, []byte("x"))

	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery on unrelated channel: %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}
