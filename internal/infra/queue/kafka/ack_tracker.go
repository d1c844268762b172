package kafka

import "sync"

// ackTracker turns out-of-order per-message acks into a monotonically
// advancing committed offset. Kafka can only commit a contiguous prefix of a
// partition, but the worker pool finishes leases in any order; the tracker
// holds completed offsets until the prefix below them is also done.
type ackTracker struct {
	mu     sync.Mutex
	seeded bool
	next   int64
	done   map[int64]struct{}
}

func newAckTracker(initialOffset int64) *ackTracker {
	t := &ackTracker{done: make(map[int64]struct{})}
	// A group with no committed offset reports a resolution sentinel
	// (OffsetOldest/OffsetNewest), not a real position. Leave the tracker
	// unseeded so the first delivered offset anchors the prefix instead.
	if initialOffset >= 0 {
		t.next = initialOffset
		t.seeded = true
	}
	return t
}

// observe anchors the contiguous prefix at the first delivered offset when
// the claim started from a sentinel. Later calls are no-ops.
func (t *ackTracker) observe(offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seeded {
		t.next = offset
		t.seeded = true
	}
}

// Ack records one completed offset. When the contiguous prefix advances it
// returns the new commit position (the offset after the last contiguous
// completed message); otherwise it returns -1.
func (t *ackTracker) Ack(offset int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done[offset] = struct{}{}

	advanced := false
	for t.seeded {
		if _, ok := t.done[t.next]; !ok {
			break
		}
		delete(t.done, t.next)
		t.next++
		advanced = true
	}

	if !advanced {
		return -1
	}
	return t.next
}
