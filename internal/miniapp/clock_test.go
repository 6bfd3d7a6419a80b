package miniapp

import (
	"sort"
	"sync"
	"testing"
	"time"
)

// manualClock fires tasks only when Advance moves virtual time past them.
type manualClock struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTask
}

type manualTask struct {
	c    *manualClock
	at   time.Duration
	seq  int
	fn   func()
	done bool
}

func (t *manualTask) Cancel() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.c.removeLocked(t)
	return true
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTask{c: c, at: c.now + d, seq: c.seq, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

func (c *manualClock) removeLocked(t *manualTask) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Advance moves time forward by d and runs every task that became due, in
// deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		sort.Slice(c.pending, func(i, j int) bool {
			if c.pending[i].at != c.pending[j].at {
				return c.pending[i].at < c.pending[j].at
			}
			return c.pending[i].seq < c.pending[j].seq
		})
		if len(c.pending) == 0 || c.pending[0].at > target {
			break
		}
		t := c.pending[0]
		c.pending = c.pending[1:]
		t.done = true
		c.now = t.at
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func TestManualClockOrderAndCancel(t *testing.T) {
	c := &manualClock{}
	var got []string
	c.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	c.AfterFunc(1*time.Second, func() { got = append(got, "a") })
	x := c.AfterFunc(1500*time.Millisecond, func() { got = append(got, "x") })

	if !x.Cancel() {
		t.Fatalf("expected first Cancel to succeed")
	}
	if x.Cancel() {
		t.Fatalf("expected second Cancel to report false")
	}

	c.Advance(1 * time.Second)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after 1s got %v", got)
	}
	c.Advance(5 * time.Second)
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("after 6s got %v", got)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", c.Pending())
	}
}

func TestSystemClockCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	task := SystemClock().AfterFunc(time.Hour, func() { fired <- struct{}{} })
	if !task.Cancel() {
		t.Fatalf("expected Cancel on a pending timer to succeed")
	}
	select {
	case <-fired:
		t.Fatalf("canceled task fired")
	default:
	}
}
