package eventbus

import "testing"

type probe struct{ n int }

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish(probe{n: 7})
	got := <-ch
	if p, ok := got.(probe); !ok || p.n != 7 {
		t.Fatalf("expected probe{7} got %#v", got)
	}
	bus.Unsubscribe(ch)
}

func TestBusFanOut(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Publish("wave")
	if v := <-ch1; v != "wave" {
		t.Fatalf("ch1 got %v", v)
	}
	if v := <-ch2; v != "wave" {
		t.Fatalf("ch2 got %v", v)
	}
	bus.Close()
}

func TestBusSlowSubscriberDropsEvents(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(i)
	}
	// The buffer fills; extra events are dropped, not blocked on.
	n := 0
	for {
		select {
		case <-ch:
			n++
			continue
		default:
		}
		break
	}
	if n != subscriberBuffer {
		t.Fatalf("expected %d buffered events got %d", subscriberBuffer, n)
	}
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatal("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("expected ch2 closed")
	}
	// Publishing and unsubscribing after Close must not panic.
	bus.Publish("late")
	bus.Unsubscribe(ch1)
	if ch := bus.Subscribe(); func() bool { _, ok := <-ch; return ok }() {
		t.Fatal("subscribe after close must return a closed channel")
	}
}
