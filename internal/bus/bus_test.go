package bus

import "testing"

func TestPublishFansOut(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("a", func(ev Event) { got = append(got, "a:"+ev.Type) })
	b.Subscribe("b", func(ev Event) { got = append(got, "b:"+ev.Type) })

	b.Publish(Event{Type: EventRunStarted, RunID: "r1"})
	if len(got) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	calls := 0
	b.Subscribe("a", func(Event) { calls++ })
	b.Publish(Event{Type: EventRunPhase})
	b.Unsubscribe("a")
	b.Publish(Event{Type: EventRunPhase})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var b *Bus
	// Must not panic: components treat the bus as optional.
	b.Publish(Event{Type: EventRunCompleted})
}

func TestSubscribeReplacesSameID(t *testing.T) {
	b := New()

	first, second := 0, 0
	b.Subscribe("a", func(Event) { first++ })
	b.Subscribe("a", func(Event) { second++ })
	b.Publish(Event{Type: EventRunFailed})

	if first != 0 || second != 1 {
		t.Errorf("first=%d second=%d, re-subscribing an ID should replace", first, second)
	}
}
