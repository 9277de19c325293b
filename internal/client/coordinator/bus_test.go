package coordinator

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	b := newBus()
	defer b.close()

	ch, cancel := b.subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		b.publish(Event{Type: ServerError, Code: i})
	}

	for i := 0; i < 100; i++ {
		if e := receive(t, ch); e.Code != i {
			t.Fatalf("event %d arrived as %d", i, e.Code)
		}
	}
}

func TestBus_LateSubscriberSeesNoHistory(t *testing.T) {
	b := newBus()
	defer b.close()

	b.publish(Event{Type: RoomCreated, RoomCode: "EARLY000"})

	ch, cancel := b.subscribe()
	defer cancel()

	b.publish(Event{Type: RoomClosed, RoomCode: "LATE0000"})

	if e := receive(t, ch); e.RoomCode != "LATE0000" {
		t.Errorf("late subscriber received %+v", e)
	}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := newBus()
	defer b.close()

	_, cancelSlow := b.subscribe()
	defer cancelSlow()
	fast, cancelFast := b.subscribe()
	defer cancelFast()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.publish(Event{Type: UserJoined})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}

	receive(t, fast)
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := newBus()
	ch, cancel := b.subscribe()

	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}

	b.close()
	after, _ := b.subscribe()
	if _, ok := <-after; ok {
		t.Error("subscribing to a closed bus should yield a closed channel")
	}
}
