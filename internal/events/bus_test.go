/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunCompleted)
	defer bus.Unsubscribe(EventRunCompleted, sub)

	bus.Publish(EventRunCompleted, Payload{"run_id": "abc"})

	select {
	case got := <-sub:
		if got["run_id"] != "abc" {
			t.Fatalf("payload run_id = %v, want abc", got["run_id"])
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublishIsScopedToEventType(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunFailed)
	defer bus.Unsubscribe(EventRunFailed, sub)

	bus.Publish(EventRunCompleted, Payload{"run_id": "abc"})

	select {
	case got := <-sub:
		t.Fatalf("unexpected event %v", got)
	default:
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunProgress)
	defer bus.Unsubscribe(EventRunProgress, sub)

	// Overfill the buffer; extra events are dropped, not blocked on.
	for i := 0; i < 100; i++ {
		bus.Publish(EventRunProgress, Payload{"i": i})
	}

	if got := len(sub); got != cap(sub) {
		t.Fatalf("buffered = %d, want full buffer %d", got, cap(sub))
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	// Churn subscribers while publishing from another goroutine. A publish
	// racing an unsubscribe must never send on the closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			bus.Publish(EventRunProgress, Payload{"i": i})
		}
	}()

	for i := 0; i < 1000; i++ {
		sub := bus.Subscribe(EventRunProgress)
		bus.Unsubscribe(EventRunProgress, sub)
	}
	<-done
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunQueued)
	bus.Unsubscribe(EventRunQueued, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventRunQueued, Payload{})
}
