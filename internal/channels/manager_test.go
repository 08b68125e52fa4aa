package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/bus"
)

// fakeChannel records sends for manager tests.
type fakeChannel struct {
	name    string
	running bool
	sent    chan bus.OutboundMessage
	failAt  error
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, sent: make(chan bus.OutboundMessage, 8)}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Start(ctx context.Context) error {
	if f.failAt != nil {
		return f.failAt
	}
	f.running = true
	return nil
}

func (f *fakeChannel) Stop(ctx context.Context) error {
	f.running = false
	return nil
}

func (f *fakeChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	f.sent <- msg
	return nil
}

func (f *fakeChannel) IsRunning() bool { return f.running }

func TestSendToChannel(t *testing.T) {
	m := NewManager(bus.New())
	ch := newFakeChannel("telegram")
	m.RegisterChannel(ch)

	ctx := context.Background()
	msg := bus.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"}

	if err := m.SendToChannel(ctx, "telegram", msg); err == nil {
		t.Fatal("expected error for stopped channel")
	}

	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.SendToChannel(ctx, "telegram", msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-ch.sent:
		if got.ChatID != "42" || got.Content != "hi" {
			t.Fatalf("unexpected message: %+v", got)
		}
	default:
		t.Fatal("message not delivered to adapter")
	}

	if err := m.SendToChannel(ctx, "slack", msg); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestStartAllPropagatesFailure(t *testing.T) {
	m := NewManager(bus.New())
	m.RegisterChannel(newFakeChannel("telegram"))

	broken := newFakeChannel("discord")
	broken.failAt = errors.New("bad token")
	m.RegisterChannel(broken)

	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected StartAll to surface the adapter failure")
	}
}

func TestDeliveryLoop(t *testing.T) {
	msgBus := bus.New()
	m := NewManager(msgBus)
	ch := newFakeChannel("discord")
	m.RegisterChannel(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.StartDeliveryLoop(ctx)

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "discord", ChatID: "7", Content: "routed"})

	select {
	case got := <-ch.sent:
		if got.Content != "routed" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery loop did not route the message")
	}
}

func TestGetStatus(t *testing.T) {
	m := NewManager(bus.New())
	ch := newFakeChannel("telegram")
	m.RegisterChannel(ch)

	status := m.GetStatus()
	entry, ok := status["telegram"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing telegram status: %+v", status)
	}
	if entry["running"] != false {
		t.Fatal("expected running=false before start")
	}

	m.StartAll(context.Background())
	entry = m.GetStatus()["telegram"].(map[string]interface{})
	if entry["running"] != true {
		t.Fatal("expected running=true after start")
	}
}
