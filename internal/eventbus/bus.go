// Package eventbus fans catalog activity out to in-process observers.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event mirrors one audit entry: Action is e.g. "link.approve" and Target
// "link:42".
//
// Publish never blocks. Subscribers get buffered channels and a slow one
// drops events.
type Event struct {
	Action string
	Actor  int64
	Target string
	Time   time.Time
}

// Publisher is what producers depend on.
type Publisher interface {
	Publish(e Event)
}

type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64

	dropped atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel and its cancel func. The channel is closed by
// unsubscribe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// Holding the write lock keeps Publish from sending on a closed channel.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Dropped counts deliveries lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Tally counts events per action.
type Tally struct {
	mu     sync.Mutex
	counts map[string]uint64
	last   time.Time
}

func NewTally() *Tally { return &Tally{counts: map[string]uint64{}} }

func (t *Tally) Add(e Event) {
	t.mu.Lock()
	t.counts[e.Action]++
	if e.Time.After(t.last) {
		t.last = e.Time
	}
	t.mu.Unlock()
}

type TallySnapshot struct {
	Counts map[string]uint64 `json:"counts"`
	Last   time.Time         `json:"last,omitzero"`
}

func (t *Tally) Snapshot() TallySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]uint64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return TallySnapshot{Counts: out, Last: t.last}
}
