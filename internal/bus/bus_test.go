package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := New()
	b.PublishInbound(InboundMessage{Channel: "telegram", SenderID: "u1", ChatID: "c1", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Channel != "telegram" || msg.Content != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestConsumeInboundCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected no message on cancelled context")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()

	// Fill the queue past capacity; overflow must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*2; i++ {
			b.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "c", Content: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishOutbound blocked on full queue")
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := New()

	got := make(map[string]string)
	b.Subscribe("a", func(ev Event) { got["a"] = ev.Name })
	b.Subscribe("b", func(ev Event) { got["b"] = ev.Name })

	b.Broadcast(Event{Name: "dm.pairing_requested"})

	if got["a"] != "dm.pairing_requested" || got["b"] != "dm.pairing_requested" {
		t.Fatalf("broadcast missed subscribers: %+v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	calls := 0
	b.Subscribe("a", func(Event) { calls++ })
	b.Broadcast(Event{Name: "one"})
	b.Unsubscribe("a")
	b.Broadcast(Event{Name: "two"})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
