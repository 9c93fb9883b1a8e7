package quadtree

import (
	"fmt"
	"sort"
)

// Handle is the stable identifier of an inserted item.
type Handle uint64

// limits is shared by every node of one tree.
type limits struct {
	maxNodes int
	minSize  float64
	onSplit  func(depth int, b BoundingBox, orphans int)
}

// node is one region of the partition. It is a leaf while children is nil
// and holds its handles in ascending order. Once split it holds none.
type node struct {
	boundary BoundingBox
	handles  []Handle
	children *[4]node
	depth    int
	limits   *limits
}

func newNode(b BoundingBox, depth int, l *limits) node {
	return node{boundary: b, depth: depth, limits: l}
}

func (n *node) isLeaf() bool { return n.children == nil }

// insert files h at p. When the leaf it lands in overflows, the leaf is
// subdivided and every handle it held, h included, is returned so the
// caller can route them again.
func (n *node) insert(p Point, h Handle) ([]Handle, error) {
	if !n.boundary.Contains(p) {
		return nil, &InsertError{Pos: p, Bounds: n.boundary}
	}
	if !n.isLeaf() {
		return n.children[n.boundary.QuadrantOf(p)].insert(p, h)
	}

	i := sort.Search(len(n.handles), func(i int) bool { return n.handles[i] >= h })
	if i < len(n.handles) && n.handles[i] == h {
		return nil, nil
	}
	n.handles = append(n.handles, 0)
	copy(n.handles[i+1:], n.handles[i:])
	n.handles[i] = h

	if len(n.handles) <= n.limits.maxNodes || !n.splittable() {
		return nil, nil
	}
	return n.subdivide(), nil
}

// splittable is false once either edge has shrunk to minSize, or once the
// midpoint rounds onto an edge and a child could no longer be smaller than
// its parent. Either bound stops stacked points from splitting forever.
func (n *node) splittable() bool {
	b := n.boundary
	if b.Width() <= n.limits.minSize || b.Height() <= n.limits.minSize {
		return false
	}
	c := b.Center()
	return b.TopLeft.X < c.X && c.X < b.BotRight.X &&
		b.TopLeft.Y < c.Y && c.Y < b.BotRight.Y
}

// subdivide turns the leaf into an internal node with four empty quadrants
// and hands back the handles it held.
func (n *node) subdivide() []Handle {
	children := new([4]node)
	for q := Nw; q <= Se; q++ {
		children[q] = n.createQuadrant(q)
	}
	n.children = children

	orphans := n.handles
	n.handles = nil
	if n.limits.onSplit != nil {
		n.limits.onSplit(n.depth, n.boundary, len(orphans))
	}
	return orphans
}

func (n *node) createQuadrant(q Quadrant) node {
	return newNode(n.boundary.Quadrant(q), n.depth+1, n.limits)
}

// searchRadius appends the handles of every leaf whose region touches the
// circle. Leaves are not filtered, so the result may over-include.
func (n *node) searchRadius(p Point, r float64, dst []Handle) []Handle {
	if n.isLeaf() {
		return append(dst, n.handles...)
	}
	for i := range n.children {
		child := &n.children[i]
		if child.boundary.IntersectsCircle(p, r) {
			dst = child.searchRadius(p, r, dst)
		}
	}
	return dst
}

// remove drops h from the leaf p routes to and reports whether it was there.
// Emptied quadrants are kept.
func (n *node) remove(h Handle, p Point) bool {
	if !n.boundary.Contains(p) {
		return false
	}
	if !n.isLeaf() {
		return n.children[n.boundary.QuadrantOf(p)].remove(h, p)
	}
	i := sort.Search(len(n.handles), func(i int) bool { return n.handles[i] >= h })
	if i == len(n.handles) || n.handles[i] != h {
		return false
	}
	n.handles = append(n.handles[:i], n.handles[i+1:]...)
	return true
}

func (n *node) lines(dst []Segment) []Segment {
	edges := n.boundary.Edges()
	dst = append(dst, edges[:]...)
	if n.isLeaf() {
		return dst
	}
	for i := range n.children {
		dst = n.children[i].lines(dst)
	}
	return dst
}

// walk visits n and its descendants depth first, quadrants in Nw, Sw, Ne,
// Se order.
func (n *node) walk(fn func(*node)) {
	fn(n)
	if n.isLeaf() {
		return
	}
	for i := range n.children {
		n.children[i].walk(fn)
	}
}

// check verifies that every leaf is strictly ascending, that no handle is
// filed twice, and that each handle resolves to a position inside its leaf.
func (n *node) check(position func(Handle) (Point, bool)) error {
	var err error
	seen := make(map[Handle]BoundingBox)
	n.walk(func(c *node) {
		if err != nil || !c.isLeaf() {
			return
		}
		for i, h := range c.handles {
			if i > 0 && c.handles[i-1] >= h {
				err = fmt.Errorf("leaf %s: handles out of order at %d: %d >= %d", c.boundary, i, c.handles[i-1], h)
				return
			}
			if prev, dup := seen[h]; dup {
				err = fmt.Errorf("handle %d filed in both %s and %s", h, prev, c.boundary)
				return
			}
			seen[h] = c.boundary
			p, ok := position(h)
			if !ok {
				err = fmt.Errorf("leaf %s: handle %d has no item", c.boundary, h)
				return
			}
			if !c.boundary.Contains(p) {
				err = fmt.Errorf("leaf %s: handle %d at %s lies outside", c.boundary, h, p)
				return
			}
		}
	})
	return err
}

// clone deep-copies the subtree. The copy is attached to l.
func (n *node) clone(l *limits) node {
	c := node{boundary: n.boundary, depth: n.depth, limits: l}
	if n.handles != nil {
		c.handles = append([]Handle(nil), n.handles...)
	}
	if n.children != nil {
		c.children = new([4]node)
		for i := range n.children {
			c.children[i] = n.children[i].clone(l)
		}
	}
	return c
}

// Stats summarises the shape of a tree.
type Stats struct {
	Nodes       int
	Leaves      int
	MaxDepth    int
	MaxLeafLoad int
	Handles     int
}

func (n *node) stats() Stats {
	var s Stats
	n.walk(func(c *node) {
		s.Nodes++
		if c.depth > s.MaxDepth {
			s.MaxDepth = c.depth
		}
		if !c.isLeaf() {
			return
		}
		s.Leaves++
		s.Handles += len(c.handles)
		if len(c.handles) > s.MaxLeafLoad {
			s.MaxLeafLoad = len(c.handles)
		}
	})
	return s
}
