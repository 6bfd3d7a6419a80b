package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Action: "link.submit", Target: "link:1"})
	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Action != "link.submit" || e.Time.IsZero() {
				t.Fatalf("event = %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatalf("event not delivered")
		}
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Publish(Event{Action: "link.approve"})
	if e := <-c; e.Action != "link.approve" {
		t.Fatalf("remaining subscriber got %+v", e)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()
	for range 3 {
		b.Publish(Event{Action: "x"})
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestTally(t *testing.T) {
	tl := NewTally()
	now := time.Now()
	tl.Add(Event{Action: "link.submit", Time: now.Add(-time.Minute)})
	tl.Add(Event{Action: "link.submit", Time: now})
	tl.Add(Event{Action: "link.reject", Time: now.Add(-time.Hour)})

	s := tl.Snapshot()
	if s.Counts["link.submit"] != 2 || s.Counts["link.reject"] != 1 || !s.Last.Equal(now) {
		t.Fatalf("snapshot = %+v", s)
	}
	s.Counts["link.submit"] = 99
	if tl.Snapshot().Counts["link.submit"] != 2 {
		t.Fatalf("snapshot aliases internal map")
	}
}
