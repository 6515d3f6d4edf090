package hub

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	h := New(4)
	a, unsubA := h.Subscribe()
	b, unsubB := h.Subscribe()
	defer unsubB()

	h.Publish(EventToast, "hello")

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		if ev.Type != EventToast || ev.Data != "hello" || ev.Timestamp == 0 {
			t.Fatalf("unexpected event: %#v", ev)
		}
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := New(1)
	ch, unsub := h.Subscribe()
	defer unsub()

	h.Publish(EventRecorderState, "RECORDING")
	h.Publish(EventRecorderState, "IDLE")

	ev := <-ch
	if ev.Data != "RECORDING" {
		t.Fatalf("expected first event, got %#v", ev)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected dropped event, got %#v", ev)
	default:
	}
}
