package eventbus

import "testing"

func TestBusFanOut(t *testing.T) {
	bus := New[string]()
	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Publish("task-1")
	if got := <-a; got != "task-1" {
		t.Fatalf("subscriber a got %q", got)
	}
	if got := <-b; got != "task-1" {
		t.Fatalf("subscriber b got %q", got)
	}
	bus.Unsubscribe(a)
	bus.Publish("task-2")
	if got := <-b; got != "task-2" {
		t.Fatalf("subscriber b got %q after unsubscribe of a", got)
	}
	if _, ok := <-a; ok {
		t.Fatal("unsubscribed channel should be closed")
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBuffered[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2) // buffer full, must not block
	if got := <-ch; got != 1 {
		t.Fatalf("got %d, want the first event", got)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected buffered event %d", v)
	default:
	}
	bus.Close()
}

func TestBusCloseIsIdempotent(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	bus.Close()
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Late subscribers get an already closed channel.
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
	bus.Unsubscribe(ch)
	bus.Publish(7)
}
