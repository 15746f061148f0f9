package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/envmonitor/internal/reading"
)

func testReading(id string) reading.Reading {
	return reading.Reading{
		ID:       reading.ID(id),
		SensorID: 3,
		Value:    21.5,
		Date:     "2024-01-01T00:00:00",
	}
}

func receive(t *testing.T, sub *Subscription) reading.Reading {
	t.Helper()
	select {
	case r, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reading")
	}
	return reading.Reading{}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case r, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected reading %+v", r)
		}
	default:
	}
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(4, 0)
	a := hub.Subscribe()
	b := hub.Subscribe()

	if a.ID == b.ID {
		t.Fatal("subscriptions share an ID")
	}
	if hub.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", hub.Count())
	}

	want := testReading("1")
	hub.Publish(want)

	if got := receive(t, a); got != want {
		t.Errorf("subscriber a got %+v, want %+v", got, want)
	}
	if got := receive(t, b); got != want {
		t.Errorf("subscriber b got %+v, want %+v", got, want)
	}
	if hub.Published() != 1 {
		t.Errorf("Published() = %d, want 1", hub.Published())
	}
	if hub.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", hub.Dropped())
	}
}

func TestHub_NoSubscribers(t *testing.T) {
	hub := NewHub(0, 0)
	hub.Publish(testReading("1"))

	if hub.Published() != 1 {
		t.Errorf("Published() = %d, want 1", hub.Published())
	}
}

func TestHub_LateSubscriberGetsNothing(t *testing.T) {
	hub := NewHub(4, 0)
	hub.Publish(testReading("1"))

	late := hub.Subscribe()
	assertEmpty(t, late)

	hub.Publish(testReading("2"))
	if got := receive(t, late); got.ID != "2" {
		t.Errorf("late subscriber got ID %q, want 2", got.ID)
	}
}

func TestHub_FullSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(1, 0)
	stuck := hub.Subscribe()
	healthy := hub.Subscribe()

	hub.Publish(testReading("1"))
	_ = receive(t, healthy)

	// stuck never reads, so its single slot is still occupied.
	done := make(chan struct{})
	go func() {
		hub.Publish(testReading("2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := receive(t, healthy); got.ID != "2" {
		t.Errorf("healthy subscriber got ID %q, want 2", got.ID)
	}
	if stuck.Dropped() != 1 {
		t.Errorf("stuck.Dropped() = %d, want 1", stuck.Dropped())
	}
	if healthy.Dropped() != 0 {
		t.Errorf("healthy.Dropped() = %d, want 0", healthy.Dropped())
	}
	if hub.Dropped() != 1 {
		t.Errorf("hub.Dropped() = %d, want 1", hub.Dropped())
	}
}

func TestHub_DeliveryTimeoutWaitsForSpace(t *testing.T) {
	hub := NewHub(1, 500*time.Millisecond)
	sub := hub.Subscribe()

	hub.Publish(testReading("1"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		<-sub.C
	}()

	hub.Publish(testReading("2"))

	if got := receive(t, sub); got.ID != "2" {
		t.Errorf("got ID %q, want 2", got.ID)
	}
	if hub.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", hub.Dropped())
	}
}

func TestHub_DeliveryTimeoutExpires(t *testing.T) {
	hub := NewHub(1, 20*time.Millisecond)
	sub := hub.Subscribe()

	hub.Publish(testReading("1"))

	start := time.Now()
	hub.Publish(testReading("2"))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Publish took %v, want about the delivery timeout", elapsed)
	}
	if sub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sub.Dropped())
	}
}

func TestHub_DeliveryTimeoutSharedAcrossStuckSubscribers(t *testing.T) {
	const timeout = 100 * time.Millisecond
	hub := NewHub(1, timeout)

	stuck := make([]*Subscription, 5)
	for i := range stuck {
		stuck[i] = hub.Subscribe()
	}
	healthy := hub.Subscribe()

	hub.Publish(testReading("1"))
	_ = receive(t, healthy)

	start := time.Now()
	hub.Publish(testReading("2"))
	elapsed := time.Since(start)

	// One shared deadline, not one per stuck subscriber.
	if elapsed >= 3*timeout {
		t.Errorf("Publish with %d stuck subscribers took %v, want under %v", len(stuck), elapsed, 3*timeout)
	}
	if got := receive(t, healthy); got.ID != "2" {
		t.Errorf("healthy subscriber got ID %q, want 2", got.ID)
	}
	if hub.Dropped() != uint64(len(stuck)) {
		t.Errorf("hub.Dropped() = %d, want %d", hub.Dropped(), len(stuck))
	}
}

func TestHub_UnsubscribeDoesNotWaitForTimedDelivery(t *testing.T) {
	hub := NewHub(1, 2*time.Second)
	slow := hub.Subscribe()

	hub.Publish(testReading("1"))

	published := make(chan struct{})
	go func() {
		hub.Publish(testReading("2"))
		close(published)
	}()
	// Let Publish reach the timed wait on slow's full queue.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	hub.Unsubscribe(slow)
	other := hub.Subscribe()
	_ = hub.Count()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Unsubscribe and Subscribe took %v while a delivery was waiting", elapsed)
	}

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish kept waiting on a removed subscriber")
	}

	hub.Unsubscribe(other)
}

func TestHub_CloseDoesNotWaitForTimedDelivery(t *testing.T) {
	hub := NewHub(1, 2*time.Second)
	hub.Subscribe()
	hub.Publish(testReading("1"))

	go hub.Publish(testReading("2"))
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		hub.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a waiting delivery")
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(4, 0)
	sub := hub.Subscribe()
	other := hub.Subscribe()

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}
	if _, ok := <-sub.C; ok {
		t.Error("unsubscribed channel should be closed")
	}

	hub.Publish(testReading("1"))
	if got := receive(t, other); got.ID != "1" {
		t.Errorf("remaining subscriber got ID %q, want 1", got.ID)
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(4, 0)
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Close()
	hub.Close()

	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.C; ok {
			t.Error("channel should be closed after Close")
		}
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", hub.Count())
	}

	// Unsubscribe after Close must not double-close.
	hub.Unsubscribe(a)

	late := hub.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}

	hub.Publish(testReading("1"))
}

func TestHub_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub(1, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		sub := hub.Subscribe()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(testReading("x"))
			}
		}()
		go func() {
			defer wg.Done()
			hub.Unsubscribe(sub)
		}()
	}
	wg.Wait()

	if hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", hub.Count())
	}
	if hub.Published() != 1000 {
		t.Errorf("Published() = %d, want 1000", hub.Published())
	}
}
