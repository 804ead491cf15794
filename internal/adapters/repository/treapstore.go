package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Treap-based, in-memory BuildingStore implementation.
//
// Ordering within a job: eave height ASC, then building id ASC
// (deterministic). The BST comparator's "less" means ranks earlier,
// so in-order traversal yields the result table from lowest to
// highest eave.

// heightScale controls fixed-point scaling from float64. Heights are
// meters above sea level, so six decimal places are far below survey
// accuracy while keeping comparisons exact.
const heightScale = 1_000_000

type heightFP int64

func toFixedPoint(x float64) heightFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return heightFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return heightFP(math.MinInt64)
	}

	scaled := x * heightScale
	if scaled > float64(math.MaxInt64) {
		return heightFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return heightFP(math.MinInt64)
	}
	return heightFP(math.Round(scaled))
}

// treap node
type node struct {
	id     string
	height heightFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aHeight, aID) should appear before (bHeight, bID)
// in the result table (lower eaves first).
func less(aHeight heightFP, aID string, bHeight heightFP, bID string) bool {
	if aHeight != bHeight {
		return aHeight < bHeight
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// heightToPriority converts an eave height to a treap priority. Lower
// eaves get higher priorities so the entries the table serves first
// stay near the root.
func heightToPriority(height heightFP) uint64 {
	const offset = uint64(1) << 63 // shift so negative heights stay ordered
	return offset - uint64(height)
}

func insert(n *node, id string, height heightFP) *node {
	if n == nil {
		return &node{id: id, height: height, prio: heightToPriority(height), size: 1}
	}
	if less(height, id, n.height, n.id) {
		n.left = insert(n.left, id, height)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, height)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, height heightFP) *node {
	if n == nil {
		return nil
	}
	if height == n.height && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, height)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, height)
		}
	} else if less(height, id, n.height, n.id) {
		n.left = deleteNode(n.left, id, height)
	} else {
		n.right = deleteNode(n.right, id, height)
	}
	fix(n)
	return n
}

// collectLowestN appends up to limit buildings in table order (lowest
// eaves first). In-order traversal of the BST already yields the
// deterministic ordering including the id tie-break.
func collectLowestN(n *node, limit int, byID map[string]model.Building, out *[]model.Building) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectLowestN(n.left, limit, byID, out)

	if len(*out) < limit {
		if b, exists := byID[n.id]; exists {
			*out = append(*out, b)
		}
	}

	if len(*out) < limit {
		collectLowestN(n.right, limit, byID, out)
	}
}

// jobTree holds one job's ordered result set.
type jobTree struct {
	root *node
	byID map[string]model.Building
}

// TreapStore keeps one treap per job so each job's result table reads
// in order without touching the others.
type TreapStore struct {
	mu                    sync.RWMutex
	jobs                  map[string]*jobTree
	total                 int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		jobs:                  make(map[string]*jobTree),
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Close gracefully shuts down the background metrics goroutine.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Put implements BuildingStore.Put with O(log n) expected time.
func (s *TreapStore) Put(ctx context.Context, b model.Building) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	nh := toFixedPoint(b.EaveHeight)
	isNew := false

	s.mu.Lock()
	tree, ok := s.jobs[b.JobID]
	if !ok {
		tree = &jobTree{byID: make(map[string]model.Building)}
		s.jobs[b.JobID] = tree
	}
	if old, ok := tree.byID[b.ID]; ok {
		tree.root = deleteNode(tree.root, b.ID, toFixedPoint(old.EaveHeight))
	} else {
		isNew = true
		s.total++
	}
	tree.byID[b.ID] = b
	tree.root = insert(tree.root, b.ID, nh)
	total := s.total
	s.mu.Unlock()

	if isNew {
		metrics.UpdateStoreRecordsTotal(total)
	}
	return isNew, nil
}

// Get returns a single building of a job in O(1).
func (s *TreapStore) Get(ctx context.Context, jobID, buildingID string) (model.Building, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.jobs[jobID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Building{}, ErrNotFound
	}
	b, ok := tree.byID[buildingID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Building{}, ErrNotFound
	}
	return b, nil
}

// LowestN returns up to n buildings of a job ordered by eave height asc.
func (s *TreapStore) LowestN(ctx context.Context, jobID string, n int) ([]model.Building, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.jobs[jobID]
	if !ok {
		return []model.Building{}, nil
	}

	out := make([]model.Building, 0, n)
	collectLowestN(tree.root, n, tree.byID, &out)
	return out, nil
}

// ByJob returns all buildings of a job in height order.
func (s *TreapStore) ByJob(ctx context.Context, jobID string) ([]model.Building, error) {
	s.mu.RLock()
	size := 0
	if tree, ok := s.jobs[jobID]; ok {
		size = len(tree.byID)
	}
	s.mu.RUnlock()

	if size == 0 {
		return []model.Building{}, nil
	}
	return s.LowestN(ctx, jobID, size)
}

// DropJob removes all buildings of a job.
func (s *TreapStore) DropJob(ctx context.Context, jobID string) {
	s.mu.Lock()
	if tree, ok := s.jobs[jobID]; ok {
		s.total -= len(tree.byID)
		delete(s.jobs, jobID)
	}
	total := s.total
	s.mu.Unlock()

	metrics.UpdateStoreRecordsTotal(total)
}

// CountJob returns the number of buildings stored for a job.
func (s *TreapStore) CountJob(ctx context.Context, jobID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tree, ok := s.jobs[jobID]; ok {
		return len(tree.byID)
	}
	return 0
}

// Count returns the number of buildings across all jobs.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// startMetricsUpdater starts a background goroutine that refreshes
// store gauges at the configured interval.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	total := s.total
	s.mu.RUnlock()

	metrics.UpdateStoreRecordsTotal(total)
	metrics.UpdateTotalBuildings(total)
}
