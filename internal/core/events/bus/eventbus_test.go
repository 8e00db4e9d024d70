package bus

import (
	"errors"
	"testing"
	"time"
)

type testObserver struct {
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnDelivered(_ Event, handlers int, err error, _ time.Duration) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("document.saved", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("document.saved", "tester", map[string]any{"key": "budget"})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.Source != "tester" || got.Data["key"] != "budget" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestDeliveryOrderAndWildcard(t *testing.T) {
	b := New()
	var order []string
	record := func(name string) EventHandler {
		return func(Event) error { order = append(order, name); return nil }
	}
	_, _ = b.Subscribe(Wildcard, record("all"))
	_, _ = b.Subscribe("x", record("first"))
	_, _ = b.Subscribe("x", record("second"))
	_, _ = b.Subscribe("y", record("other"))

	if err := b.Publish(NewEvent("x", "src", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"first", "second", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestErrorsAreJoined(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestPublishAsyncReturnsErrorChannel(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	_, _ = b.Subscribe("x", func(Event) error { return handlerErr })

	select {
	case err := <-b.PublishAsync(NewEvent("x", "src", nil)):
		if !errors.Is(err, handlerErr) {
			t.Fatalf("expected %v, got %v", handlerErr, err)
		}
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.Subscribe("x", func(Event) error { calls++; return nil })
	_ = b.Publish(NewEvent("x", "src", nil))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	_ = b.Publish(NewEvent("x", "src", nil))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
	if _, err := b.Subscribe("x", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestObserverMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	_, _ = b.Subscribe("x", func(Event) error { return errors.New("boom") })
	_ = b.Publish(NewEvent("x", "src", nil))
	if m := b.GetMetrics(); m.Published != 0 {
		t.Fatalf("metrics recorded without observers: %+v", m)
	}

	b.AddObserver(obs)
	_ = b.Publish(NewEvent("x", "src", nil))
	_ = b.Publish(NewEvent("y", "src", nil))
	m := b.GetMetrics()
	if m.Published != 2 || m.DeliveredHandlers != 1 || m.Errors != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if obs.deliveredCount != 1 || obs.lastErr != nil {
		t.Fatalf("unexpected observer state: %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("x", "src", nil))
	if b.GetMetrics().Published != 2 {
		t.Fatal("metrics updated after observer removal")
	}
}
