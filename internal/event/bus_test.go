package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(PermissionAsked, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{
		Type: PermissionAsked,
		Data: PermissionAskedData{ActionType: "bash", Argument: "git push"},
	})

	wg.Wait()
	if received.Type != PermissionAsked {
		t.Fatalf("expected %s, got %s", PermissionAsked, received.Type)
	}
}

func TestBusSubscribeOnlyMatchingType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	bus.Subscribe(GrantSession, func(e Event) {
		count.Add(1)
	})

	bus.PublishSync(Event{Type: GrantProject, Data: GrantData{Operation: "push"}})
	bus.PublishSync(Event{Type: GrantSession, Data: GrantData{Operation: "commit"}})

	if got := count.Load(); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	unsub := bus.SubscribeAll(func(e Event) {
		count.Add(1)
	})

	bus.PublishSync(Event{Type: ConfigReloaded})
	bus.PublishSync(Event{Type: GrantsCleared})

	if got := count.Load(); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}

	unsub()
	bus.PublishSync(Event{Type: ConfigReloaded})
	if got := count.Load(); got != 2 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", got)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	unsub := bus.Subscribe(PermissionResolved, func(e Event) {
		count.Add(1)
	})

	bus.PublishSync(Event{Type: PermissionResolved})
	unsub()
	bus.PublishSync(Event{Type: PermissionResolved})

	if got := count.Load(); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
}

func TestBusWireChannelCarriesEnvelope(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := bus.PubSub().Subscribe(ctx, string(ConfigReloaded))
	if err != nil {
		t.Fatal(err)
	}

	bus.PublishSync(Event{
		Type: ConfigReloaded,
		Data: ConfigReloadedData{Version: 3, Path: "kuuzuki.json"},
	})

	select {
	case msg := <-msgs:
		var envelope struct {
			Type string             `json:"type"`
			Data ConfigReloadedData `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			t.Fatal(err)
		}
		if envelope.Type != string(ConfigReloaded) {
			t.Fatalf("expected %s, got %s", ConfigReloaded, envelope.Type)
		}
		if envelope.Data.Version != 3 || envelope.Data.Path != "kuuzuki.json" {
			t.Fatalf("unexpected payload %+v", envelope.Data)
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no message on the wire channel")
	}
}

func TestBusClosedDropsEvents(t *testing.T) {
	bus := NewBus()

	var count atomic.Int64
	bus.Subscribe(PermissionAsked, func(e Event) {
		count.Add(1)
	})

	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}

	bus.PublishSync(Event{Type: PermissionAsked})
	time.Sleep(10 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Fatalf("expected no deliveries after close, got %d", got)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	bus.Subscribe(PermissionResolved, func(e Event) {
		count.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.PublishSync(Event{Type: PermissionResolved})
		}()
	}
	wg.Wait()

	if got := count.Load(); got != 50 {
		t.Fatalf("expected 50 deliveries, got %d", got)
	}
}
