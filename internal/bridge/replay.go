package bridge

import "sync"

// ReplayBuffer holds the most recent output events so late joiners can see
// history. Entries are stored raw and bounded by capacity, oldest evicted;
// buffer order equals emission order. Raw content must never leave the
// process unredacted: redaction happens at delivery time, in Snapshot
// consumers.
type ReplayBuffer struct {
	mu       sync.Mutex
	entries  []string
	start    int
	count    int
	capacity int
}

func NewReplayBuffer(capacity int) *ReplayBuffer {
	return &ReplayBuffer{
		entries:  make([]string, capacity),
		capacity: capacity,
	}
}

func (b *ReplayBuffer) Append(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.entries[b.start] = data
		b.start = (b.start + 1) % b.capacity
		return
	}
	b.entries[(b.start+b.count)%b.capacity] = data
	b.count++
}

// Snapshot returns the buffered entries in emission order.
func (b *ReplayBuffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%b.capacity]
	}
	return out
}

func (b *ReplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
