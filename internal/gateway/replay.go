package gateway

import "sync"

type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer keeps the last N envelopes of one channel in a ring.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry
	next    int
	size    int
	last    int64
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replayDepth
	}
	return &ReplayBuffer{entries: make([]replayEntry, capacity)}
}

// Push stores data under seq, evicting the oldest entry when full. Seqs
// must increase.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries[rb.next] = replayEntry{Seq: seq, Data: append([]byte(nil), data...)}
	rb.next = (rb.next + 1) % len(rb.entries)
	if rb.size < len(rb.entries) {
		rb.size++
	}
	rb.last = seq
}

// Since returns the envelopes with seq > after, oldest first.
func (rb *ReplayBuffer) Since(after int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	var out [][]byte
	start := (rb.next - rb.size + len(rb.entries)) % len(rb.entries)
	for i := 0; i < rb.size; i++ {
		e := rb.entries[(start+i)%len(rb.entries)]
		if e.Seq > after {
			out = append(out, e.Data)
		}
	}
	return out
}

// Last returns the newest seq, 0 when empty.
func (rb *ReplayBuffer) Last() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.last
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}
