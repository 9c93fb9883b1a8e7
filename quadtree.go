/*
Package quadtree implements an adaptive quadtree for radius queries over a
bounded plane.

Items are stored in a side table under a Handle; the tree itself only files
handles by position. A leaf holds up to its capacity before it is
subdivided, unless its region has already shrunk to the minimum size, in
which case it keeps growing. Quadrants are never merged back.

The index does not detect motion. When an item moves, call Reinsert with
the position it was last filed at.

A Quadtree is not safe for concurrent use. Guard it externally, for example
with a sync.RWMutex, if several goroutines need it.
*/
package quadtree

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Quadtree maps handles to items and files the handles in a partition of
// its bounding box.
type Quadtree[T Positioner] struct {
	items   map[Handle]T
	next    Handle
	root    node
	limits  *limits
	log     *Logger
	metrics MetricsCollector
}

// New creates an empty index over the box from topLeft to botRight. A leaf
// splits once it holds more than maxNodes handles and both of its edges are
// longer than minSize. A leaf whose region can no longer be halved at float64
// precision never splits, so a minSize of zero or less is allowed.
func New[T Positioner](maxNodes int, minSize float64, topLeft, botRight Point, opts ...Option) *Quadtree[T] {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	q := &Quadtree[T]{
		items:   make(map[Handle]T),
		log:     o.logger,
		metrics: o.metrics,
	}
	q.limits = q.newLimits(maxNodes, minSize)
	q.root = newNode(NewBoundingBox(topLeft, botRight), 0, q.limits)
	return q
}

func (q *Quadtree[T]) newLimits(maxNodes int, minSize float64) *limits {
	return &limits{
		maxNodes: maxNodes,
		minSize:  minSize,
		onSplit: func(depth int, b BoundingBox, orphans int) {
			q.log.LogSplit(depth, b, orphans)
			q.metrics.RecordSplit(depth, orphans)
		},
	}
}

// Insert stores item and files it at pos. It fails with an *InsertError,
// leaving the index untouched, if pos lies outside the root region.
//
// If a split forces handles to be filed again and one of them belongs to an
// item that has moved out of the root region, the insert still succeeds
// and the returned error holds a *RerouteError for that handle. Such an
// error does not match ErrOutOfBounds; the returned handle is valid.
func (q *Quadtree[T]) Insert(item T, pos Point) (Handle, error) {
	start := time.Now()
	if !q.root.boundary.Contains(pos) {
		err := &InsertError{Pos: pos, Bounds: q.root.boundary}
		q.log.LogInsert(0, pos, 0, err)
		q.metrics.RecordInsert(time.Since(start), err)
		return 0, err
	}

	h := q.next
	pending, err := q.root.insert(pos, h)
	if err != nil {
		panic("quadtree: root rejected a position inside its boundary: " + err.Error())
	}
	q.next++
	q.items[h] = item

	rerouted, err := q.reroute(pending)
	q.log.LogInsert(h, pos, rerouted, err)
	q.metrics.RecordInsert(time.Since(start), err)
	return h, err
}

// reroute files pending handles again from the root until no split is
// left outstanding. Each handle is placed at its item's current position.
func (q *Quadtree[T]) reroute(pending []Handle) (int, error) {
	var errs []error
	n := 0
	for len(pending) > 0 {
		h := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		n++

		pos := q.items[h].Position()
		more, err := q.root.insert(pos, h)
		if err != nil {
			errs = append(errs, &RerouteError{Handle: h, Pos: pos, Bounds: q.root.boundary})
			continue
		}
		pending = append(pending, more...)
	}
	return n, errors.Join(errs...)
}

// Reinsert refiles an item that has moved. oldPos is the position it was
// last filed at; the new position is read from the item. If the new
// position is outside the root region nothing changes and an *InsertError
// is returned.
func (q *Quadtree[T]) Reinsert(h Handle, oldPos Point) error {
	start := time.Now()
	item, ok := q.items[h]
	if !ok {
		err := fmt.Errorf("reinsert %d: %w", h, ErrHandleNotFound)
		q.log.LogReinsert(h, oldPos, oldPos, err)
		q.metrics.RecordReinsert(time.Since(start), err)
		return err
	}
	to := item.Position()
	if !q.root.boundary.Contains(to) {
		err := &InsertError{Pos: to, Bounds: q.root.boundary}
		q.log.LogReinsert(h, oldPos, to, err)
		q.metrics.RecordReinsert(time.Since(start), err)
		return err
	}

	if !q.root.remove(h, oldPos) {
		// oldPos was stale; look for the handle everywhere so it is never
		// filed twice.
		q.removeAnywhere(h)
	}
	_, err := q.reroute([]Handle{h})
	q.log.LogReinsert(h, oldPos, to, err)
	q.metrics.RecordReinsert(time.Since(start), err)
	return err
}

func (q *Quadtree[T]) removeAnywhere(h Handle) bool {
	found := false
	q.root.walk(func(n *node) {
		if found || !n.isLeaf() {
			return
		}
		found = n.remove(h, n.boundary.TopLeft)
	})
	return found
}

// Remove takes h out of the leaf pos routes to and returns its item. It
// reports false, and keeps the item, if h is not filed there.
func (q *Quadtree[T]) Remove(h Handle, pos Point) (T, bool) {
	start := time.Now()
	var item T
	found := q.root.remove(h, pos)
	if found {
		item = q.items[h]
		delete(q.items, h)
	}
	q.log.LogRemove(h, pos, found)
	q.metrics.RecordRemove(time.Since(start), found)
	return item, found
}

// SearchRadius returns the items within r of pos, boundary included.
func (q *Quadtree[T]) SearchRadius(pos Point, r float64) []T {
	start := time.Now()
	ids := q.searchRadius(pos, r)
	var result []T
	for _, h := range ids {
		item := q.items[h]
		if item.Position().DistanceSquared(pos) <= r*r {
			result = append(result, item)
		}
	}
	q.log.LogSearch(pos, r, len(ids), len(result))
	q.metrics.RecordSearch(len(ids), len(result), time.Since(start))
	return result
}

// SearchRadiusIDs returns the handles of every leaf whose region touches the
// circle. It is a superset of what SearchRadius returns.
func (q *Quadtree[T]) SearchRadiusIDs(pos Point, r float64) []Handle {
	start := time.Now()
	ids := q.searchRadius(pos, r)
	q.log.LogSearch(pos, r, len(ids), len(ids))
	q.metrics.RecordSearch(len(ids), len(ids), time.Since(start))
	return ids
}

func (q *Quadtree[T]) searchRadius(pos Point, r float64) []Handle {
	if r < 0 || !q.root.boundary.IntersectsCircle(pos, r) {
		return nil
	}
	return q.root.searchRadius(pos, r, nil)
}

// Lines returns the edges of every region in the tree, parents first.
func (q *Quadtree[T]) Lines() []Segment {
	return q.root.lines(nil)
}

// Len returns the number of stored items.
func (q *Quadtree[T]) Len() int { return len(q.items) }

// Get returns the item stored under h.
func (q *Quadtree[T]) Get(h Handle) (T, bool) {
	item, ok := q.items[h]
	return item, ok
}

// Bounds returns the root region.
func (q *Quadtree[T]) Bounds() BoundingBox { return q.root.boundary }

// Each calls fn for every item in ascending handle order until fn returns
// false.
func (q *Quadtree[T]) Each(fn func(Handle, T) bool) {
	handles := make([]Handle, 0, len(q.items))
	for h := range q.items {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		if !fn(h, q.items[h]) {
			return
		}
	}
}

// Stats reports the current shape of the tree.
func (q *Quadtree[T]) Stats() Stats { return q.root.stats() }

// CheckInvariants walks the tree and reports the first leaf that is out of
// order, files a handle twice, or holds an item positioned outside it.
// Items that moved without a Reinsert are reported too.
func (q *Quadtree[T]) CheckInvariants() error {
	return q.root.check(func(h Handle) (Point, bool) {
		item, ok := q.items[h]
		if !ok {
			return Point{}, false
		}
		return item.Position(), true
	})
}

// Clone returns an independent copy of the index. Items are copied by
// value, so pointer items are shared with q.
func (q *Quadtree[T]) Clone() *Quadtree[T] {
	c := &Quadtree[T]{
		items:   make(map[Handle]T, len(q.items)),
		next:    q.next,
		log:     q.log,
		metrics: q.metrics,
	}
	for h, item := range q.items {
		c.items[h] = item
	}
	c.limits = c.newLimits(q.limits.maxNodes, q.limits.minSize)
	c.root = q.root.clone(c.limits)
	return c
}
