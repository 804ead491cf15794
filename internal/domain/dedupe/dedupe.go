// Package dedupe tracks already-submitted area selections so identical
// requests resolve to the same analysis job.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// Deduper maps selection fingerprints to job ids.
type Deduper interface {
	// LookupOrRecord atomically resolves a fingerprint. If it was seen
	// before, the original job id is returned with seen=true; otherwise
	// jobID is recorded and returned with seen=false.
	LookupOrRecord(ctx context.Context, fingerprint, jobID string) (string, bool)

	// Forget removes a fingerprint, allowing the selection to be
	// resubmitted. Used when a recorded job could not be enqueued.
	Forget(ctx context.Context, fingerprint string)

	Size() int64
}

// Fingerprint derives a canonical hash for a selection ring. Vertices
// are rounded to centimeters so that numerically jittered but visually
// identical polygons collapse to the same fingerprint.
func Fingerprint(ring orb.Ring) string {
	h := sha256.New()
	for _, p := range ring {
		fmt.Fprintf(h, "%.2f,%.2f;", p[0], p[1])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// node is a single entry in the eviction list.
type node struct {
	fingerprint string
	jobID       string
	next        *node
}

// reset clears the node state for reuse.
func (n *node) reset() {
	n.fingerprint = ""
	n.jobID = ""
	n.next = nil
}

// inMemoryDeduper implements Deduper with a map plus a linked list for
// LIFO eviction in bounded mode. Unbounded mode (maxSize <= 0) keeps
// everything in the map.
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[string]*node
	head     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000, // default max size
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*node)

	if d.maxSize > 0 {
		d.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}

	return d
}

// LookupOrRecord atomically resolves a fingerprint to a job id.
func (d *inMemoryDeduper) LookupOrRecord(ctx context.Context, fingerprint, jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.seen[fingerprint]; ok {
		if existing != nil {
			return existing.jobID, true
		}
		return "", true
	}

	if d.maxSize > 0 {
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}

		n := d.nodePool.Get().(*node)
		n.fingerprint = fingerprint
		n.jobID = jobID
		n.next = d.head

		d.head = n
		d.seen[fingerprint] = n
	} else {
		n := &node{fingerprint: fingerprint, jobID: jobID}
		d.seen[fingerprint] = n
	}
	d.size.Add(1)
	return jobID, false
}

// Forget removes a fingerprint from the seen set.
func (d *inMemoryDeduper) Forget(ctx context.Context, fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.seen[fingerprint]
	if !ok {
		return
	}
	delete(d.seen, fingerprint)
	d.size.Add(-1)

	if d.maxSize <= 0 || n == nil {
		return
	}

	// Unlink from the eviction list.
	if d.head == n {
		d.head = n.next
	} else {
		current := d.head
		for current != nil && current.next != n {
			current = current.next
		}
		if current != nil {
			current.next = n.next
		}
	}
	n.reset()
	d.nodePool.Put(n)
}

// evictOldest removes the tail of the eviction list.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if len(d.seen) == 0 || d.head == nil {
		return
	}

	current := d.head
	if current.next == nil {
		delete(d.seen, current.fingerprint)
		current.reset()
		d.nodePool.Put(current)
		d.head = nil
		d.size.Add(-1)
		return
	}

	var prev *node
	for current.next != nil {
		prev = current
		current = current.next
	}

	prev.next = nil
	delete(d.seen, current.fingerprint)
	current.reset()
	d.nodePool.Put(current)
	d.size.Add(-1)
}

// Size returns the current number of tracked fingerprints.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
