package quadtree

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unit struct {
	name string
	pos  Point
}

func (u *unit) Position() Point { return u.pos }

func names(units []*unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.name)
	}
	sort.Strings(out)
	return out
}

func newUnitTree(maxNodes int, minSize float64, opts ...Option) *Quadtree[*unit] {
	return New[*unit](maxNodes, minSize, Point{0, 0}, Point{1, 1}, opts...)
}

func mustInsert(t *testing.T, qt *Quadtree[*unit], u *unit) Handle {
	t.Helper()
	h, err := qt.Insert(u, u.pos)
	require.NoError(t, err)
	return h
}

// leafFor follows the routing rule from the root down to a leaf.
func leafFor(n *node, p Point) *node {
	for !n.isLeaf() {
		n = &n.children[n.boundary.QuadrantOf(p)]
	}
	return n
}

func TestConcreteSplitScenario(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	a := &unit{name: "A", pos: Point{0.1, 0.1}}
	b := &unit{name: "B", pos: Point{0.2, 0.2}}
	mustInsert(t, qt, a)
	require.Equal(t, 1, qt.Stats().Nodes)
	mustInsert(t, qt, b)
	require.Greater(t, qt.Stats().Nodes, 1)

	assert.Equal(t, []string{"A", "B"}, names(qt.SearchRadius(Point{0, 0}, 0.5)))
	assert.Empty(t, qt.SearchRadius(Point{0, 0}, 0.05))
	require.NoError(t, qt.CheckInvariants())
}

func TestInsertOutsideBounds(t *testing.T) {
	qt := newUnitTree(4, 0.01)
	mustInsert(t, qt, &unit{name: "in", pos: Point{0.5, 0.5}})

	outside := []Point{{-0.1, 0.5}, {0.5, -0.1}, {1.1, 0.5}, {0.5, 1.1}, {5, 5}, {-3, -3}}
	for _, p := range outside {
		t.Run(p.String(), func(t *testing.T) {
			before := qt.Stats()
			_, err := qt.Insert(&unit{pos: p}, p)

			require.ErrorIs(t, err, ErrOutOfBounds)
			var ie *InsertError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, p, ie.Pos)
			assert.Equal(t, qt.Bounds(), ie.Bounds)
			assert.Equal(t, 1, qt.Len())
			assert.Equal(t, before, qt.Stats())
		})
	}

	// A rejected insert does not consume a handle.
	h := mustInsert(t, qt, &unit{name: "next", pos: Point{0.2, 0.2}})
	assert.Equal(t, Handle(1), h)
}

func TestHandlesAreMonotonicAndNeverReused(t *testing.T) {
	qt := newUnitTree(2, 0.01)
	u := &unit{pos: Point{0.3, 0.3}}
	h0 := mustInsert(t, qt, u)
	_, ok := qt.Remove(h0, u.pos)
	require.True(t, ok)
	h1 := mustInsert(t, qt, u)
	assert.Equal(t, Handle(0), h0)
	assert.Equal(t, Handle(1), h1)
}

func TestRemoveRoundTrip(t *testing.T) {
	qt := newUnitTree(2, 0.01)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		mustInsert(t, qt, &unit{pos: Point{rng.Float64(), rng.Float64()}})
	}
	x := &unit{name: "X", pos: Point{0.42, 0.58}}
	h := mustInsert(t, qt, x)

	got, ok := qt.Remove(h, x.pos)
	require.True(t, ok)
	assert.Same(t, x, got)
	_, ok = qt.Get(h)
	assert.False(t, ok)

	for _, r := range []float64{0, 0.01, 0.5, 2} {
		assert.NotContains(t, qt.SearchRadius(x.pos, r), x)
		assert.NotContains(t, qt.SearchRadiusIDs(x.pos, r), h)
	}

	_, ok = qt.Remove(h, x.pos)
	assert.False(t, ok)
	require.NoError(t, qt.CheckInvariants())
}

func TestRemoveAtWrongPositionKeepsItem(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	a := &unit{name: "A", pos: Point{0.1, 0.1}}
	b := &unit{name: "B", pos: Point{0.9, 0.9}}
	ha := mustInsert(t, qt, a)
	mustInsert(t, qt, b)

	_, ok := qt.Remove(ha, b.pos)
	assert.False(t, ok)
	_, ok = qt.Remove(ha, Point{7, 7})
	assert.False(t, ok)

	got, ok := qt.Get(ha)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, qt.Len())
}

func TestSearchRadiusMatchesLinearScan(t *testing.T) {
	qt := New[*unit](4, 0.5, Point{0, 0}, Point{100, 100})
	rng := rand.New(rand.NewSource(42))

	var all []*unit
	handles := make(map[*unit]Handle)
	for i := 0; i < 2000; i++ {
		u := &unit{name: string(rune('a'+i%26)) + "-" + string(rune('0'+i%10)), pos: Point{rng.Float64() * 100, rng.Float64() * 100}}
		h, err := qt.Insert(u, u.pos)
		require.NoError(t, err)
		all = append(all, u)
		handles[u] = h
	}
	require.NoError(t, qt.CheckInvariants())

	for i := 0; i < 300; i++ {
		c := Point{rng.Float64()*120 - 10, rng.Float64()*120 - 10}
		r := rng.Float64() * 30

		var want []*unit
		for _, u := range all {
			if u.pos.DistanceSquared(c) <= r*r {
				want = append(want, u)
			}
		}
		got := qt.SearchRadius(c, r)
		require.ElementsMatch(t, want, got, "center %s radius %v", c, r)

		ids := qt.SearchRadiusIDs(c, r)
		for _, u := range want {
			require.Contains(t, ids, handles[u])
		}
		assert.GreaterOrEqual(t, len(ids), len(got))
	}
}

func TestSearchRadiusIDsOverIncludes(t *testing.T) {
	qt := newUnitTree(8, 0.01)
	h := mustInsert(t, qt, &unit{pos: Point{0.9, 0.9}})

	assert.Equal(t, []Handle{h}, qt.SearchRadiusIDs(Point{0.1, 0.1}, 0.05))
	assert.Empty(t, qt.SearchRadius(Point{0.1, 0.1}, 0.05))
	assert.Empty(t, qt.SearchRadiusIDs(Point{3, 3}, 0.5))
	assert.Empty(t, qt.SearchRadiusIDs(Point{0.5, 0.5}, -1))
}

func TestSplitPreservesMembership(t *testing.T) {
	qt := newUnitTree(4, 0.01)
	pts := []Point{{0.1, 0.1}, {0.9, 0.1}, {0.1, 0.9}, {0.9, 0.9}, {0.6, 0.6}}
	var units []*unit
	for i, p := range pts {
		u := &unit{name: string(rune('A' + i)), pos: p}
		units = append(units, u)
		mustInsert(t, qt, u)
	}

	s := qt.Stats()
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 4, s.Leaves)
	assert.Equal(t, 5, s.Handles)
	assert.ElementsMatch(t, units, qt.SearchRadius(Point{0.5, 0.5}, 1))
	require.NoError(t, qt.CheckInvariants())
}

func TestStackedItemsTerminate(t *testing.T) {
	qt := newUnitTree(5, 0.01)
	const n = 10000
	for i := 0; i < n; i++ {
		mustInsert(t, qt, &unit{pos: Point{0.1, 0.1}})
	}

	s := qt.Stats()
	assert.LessOrEqual(t, s.MaxDepth, 7)
	assert.Equal(t, n, s.MaxLeafLoad)
	assert.Equal(t, n, s.Handles)
	assert.Len(t, qt.SearchRadius(Point{0.1, 0.1}, 0), n)
	require.NoError(t, qt.CheckInvariants())
}

func TestDiagonalInsertions(t *testing.T) {
	qt := newUnitTree(5, 0.01)
	const n = 10000
	for i := 0; i < n; i++ {
		f := float64(i) / n
		mustInsert(t, qt, &unit{pos: Point{f, f}})
	}
	assert.Equal(t, n, qt.Len())
	assert.Equal(t, n, qt.Stats().Handles)
	require.NoError(t, qt.CheckInvariants())
}

func TestEveryItemIsInTheLeafItRoutesTo(t *testing.T) {
	qt := newUnitTree(3, 0.001)
	rng := rand.New(rand.NewSource(11))
	handles := make(map[Handle]*unit)
	for i := 0; i < 1000; i++ {
		p := Point{rng.Float64(), rng.Float64()}
		if i%10 == 0 {
			// land exactly on split lines
			p = Point{0.5, float64(rng.Intn(9)) / 8}
		}
		u := &unit{pos: p}
		handles[mustInsert(t, qt, u)] = u
	}
	for h, u := range handles {
		leaf := leafFor(&qt.root, u.pos)
		require.Contains(t, leaf.handles, h)
		require.True(t, leaf.boundary.Contains(u.pos))
	}
}

func TestLeavesStaySortedUnderChurn(t *testing.T) {
	qt := newUnitTree(4, 0.01)
	rng := rand.New(rand.NewSource(5))
	live := make(map[Handle]*unit)
	for step := 0; step < 3000; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			u := &unit{pos: Point{rng.Float64(), rng.Float64()}}
			live[mustInsert(t, qt, u)] = u
		case op == 1:
			for h, u := range live {
				_, ok := qt.Remove(h, u.pos)
				require.True(t, ok)
				delete(live, h)
				break
			}
		default:
			for h, u := range live {
				old := u.pos
				u.pos = Point{rng.Float64(), rng.Float64()}
				require.NoError(t, qt.Reinsert(h, old))
				break
			}
		}
	}
	require.NoError(t, qt.CheckInvariants())
	assert.Equal(t, len(live), qt.Len())

	qt.root.walk(func(n *node) {
		if n.isLeaf() {
			assert.True(t, sort.SliceIsSorted(n.handles, func(i, j int) bool { return n.handles[i] < n.handles[j] }))
		}
	})
}

func TestReinsertMovesItem(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	a := &unit{name: "A", pos: Point{0.1, 0.1}}
	b := &unit{name: "B", pos: Point{0.2, 0.2}}
	ha := mustInsert(t, qt, a)
	mustInsert(t, qt, b)

	old := a.pos
	a.pos = Point{0.9, 0.8}
	require.NoError(t, qt.Reinsert(ha, old))

	assert.Equal(t, []*unit{a}, qt.SearchRadius(Point{0.9, 0.8}, 0.01))
	assert.NotContains(t, qt.SearchRadiusIDs(old, 0.01), ha)
	require.NoError(t, qt.CheckInvariants())
}

func TestReinsertOutsideLeavesIndexUnchanged(t *testing.T) {
	qt := newUnitTree(2, 0.01)
	a := &unit{name: "A", pos: Point{0.3, 0.3}}
	h := mustInsert(t, qt, a)

	old := a.pos
	a.pos = Point{1.5, 0.3}
	err := qt.Reinsert(h, old)
	require.ErrorIs(t, err, ErrOutOfBounds)

	assert.Contains(t, qt.SearchRadiusIDs(old, 0), h)
	a.pos = old
	require.NoError(t, qt.CheckInvariants())
}

func TestReinsertUnknownHandle(t *testing.T) {
	qt := newUnitTree(2, 0.01)
	err := qt.Reinsert(99, Point{0.5, 0.5})
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestReinsertWithStaleOldPosition(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	a := &unit{pos: Point{0.1, 0.1}}
	b := &unit{pos: Point{0.9, 0.9}}
	ha := mustInsert(t, qt, a)
	mustInsert(t, qt, b)

	a.pos = Point{0.8, 0.2}
	require.NoError(t, qt.Reinsert(ha, Point{0.6, 0.6}))
	require.NoError(t, qt.CheckInvariants())
	assert.Equal(t, 2, qt.Stats().Handles)
}

func TestRerouteOfEscapedItem(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	a := &unit{pos: Point{0.1, 0.1}}
	ha := mustInsert(t, qt, a)

	// a moves away without being reinserted; the split below has to refile it.
	a.pos = Point{5, 5}
	hb, err := qt.Insert(&unit{pos: Point{0.2, 0.2}}, Point{0.2, 0.2})
	require.Error(t, err)
	// the new item was stored, so this must not read as a rejected insert
	assert.NotErrorIs(t, err, ErrOutOfBounds)

	var re *RerouteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ha, re.Handle)
	assert.Equal(t, Point{5, 5}, re.Pos)
	assert.Equal(t, unitBox(), re.Bounds)
	assert.Equal(t, Handle(1), hb)

	assert.Equal(t, 2, qt.Len())
	assert.Equal(t, 1, qt.Stats().Handles)
	_, ok := qt.Get(ha)
	assert.True(t, ok)

	a.pos = Point{0.7, 0.7}
	require.NoError(t, qt.Reinsert(ha, Point{0.1, 0.1}))
	assert.Equal(t, 2, qt.Stats().Handles)
	require.NoError(t, qt.CheckInvariants())
}

func TestLines(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	assert.Len(t, qt.Lines(), 4)
	mustInsert(t, qt, &unit{pos: Point{0.1, 0.1}})
	mustInsert(t, qt, &unit{pos: Point{0.9, 0.9}})
	assert.Len(t, qt.Lines(), 4*qt.Stats().Nodes)
}

func TestEachAscending(t *testing.T) {
	qt := newUnitTree(2, 0.01)
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 40; i++ {
		mustInsert(t, qt, &unit{pos: Point{rng.Float64(), rng.Float64()}})
	}
	var seen []Handle
	qt.Each(func(h Handle, _ *unit) bool {
		seen = append(seen, h)
		return true
	})
	require.Len(t, seen, 40)
	assert.True(t, sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i] < seen[j] }))

	count := 0
	qt.Each(func(Handle, *unit) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}

func TestClone(t *testing.T) {
	qt := newUnitTree(1, 0.01)
	mustInsert(t, qt, &unit{name: "A", pos: Point{0.1, 0.1}})
	mustInsert(t, qt, &unit{name: "B", pos: Point{0.2, 0.2}})

	c := qt.Clone()
	mustInsert(t, c, &unit{name: "C", pos: Point{0.15, 0.15}})

	assert.Equal(t, 2, qt.Len())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"A", "B"}, names(qt.SearchRadius(Point{0, 0}, 1)))
	assert.Equal(t, []string{"A", "B", "C"}, names(c.SearchRadius(Point{0, 0}, 1)))
	require.NoError(t, qt.CheckInvariants())
	require.NoError(t, c.CheckInvariants())
}

func TestMetricsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	metrics := &BasicMetricsCollector{}
	qt := newUnitTree(1, 0.01,
		WithMetricsCollector(metrics),
		WithLogger(NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	a := &unit{pos: Point{0.1, 0.1}}
	ha := mustInsert(t, qt, a)
	mustInsert(t, qt, &unit{pos: Point{0.9, 0.9}})
	_, err := qt.Insert(&unit{}, Point{3, 3})
	require.Error(t, err)
	qt.SearchRadius(Point{0.1, 0.1}, 0.2)
	_, ok := qt.Remove(ha, Point{0.9, 0.9})
	require.False(t, ok)
	require.NoError(t, qt.Reinsert(ha, a.pos))

	s := metrics.Snapshot()
	assert.Equal(t, int64(3), s.Inserts)
	assert.Equal(t, int64(1), s.InsertErrors)
	assert.Equal(t, int64(1), s.Splits)
	assert.Equal(t, int64(2), s.SplitOrphans)
	assert.Equal(t, int64(1), s.Searches)
	assert.Equal(t, int64(1), s.SearchMatches)
	assert.Equal(t, int64(1), s.Removes)
	assert.Equal(t, int64(1), s.RemoveMisses)
	assert.Equal(t, int64(1), s.Reinserts)
	assert.Zero(t, s.ReinsertErrors)

	out := buf.String()
	assert.Contains(t, out, "insert completed")
	assert.Contains(t, out, "insert failed")
	assert.Contains(t, out, "leaf split")
	assert.Contains(t, out, "search completed")
	assert.Contains(t, out, "remove completed")
	assert.Contains(t, out, "reinsert completed")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "remove completed") || strings.Contains(line, "reinsert completed") {
			assert.Contains(t, line, "handle=0")
		}
	}
}

func TestStackedItemsStopAtFloatPrecision(t *testing.T) {
	tests := []struct {
		name     string
		minSize  float64
		topLeft  Point
		botRight Point
		pos      Point
	}{
		{"LargeCoordinates", 1e-12, Point{1e9, 1e9}, Point{1e9 + 1, 1e9 + 1}, Point{1e9 + 0.3, 1e9 + 0.3}},
		{"ZeroMinSize", 0, Point{0, 0}, Point{1, 1}, Point{0.3, 0.3}},
		{"NegativeMinSize", -1, Point{0, 0}, Point{1, 1}, Point{0.3, 0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qt := New[*unit](1, tt.minSize, tt.topLeft, tt.botRight)
			for i := 0; i < 50; i++ {
				mustInsert(t, qt, &unit{pos: tt.pos})
			}
			require.NoError(t, qt.CheckInvariants())

			st := qt.Stats()
			assert.Equal(t, 50, st.Handles)
			assert.Less(t, st.MaxDepth, 64)
			assert.Equal(t, 50, st.MaxLeafLoad)
			assert.Len(t, qt.SearchRadius(tt.pos, 0), 50)
		})
	}
}

func TestNilOptionsFallBack(t *testing.T) {
	qt := newUnitTree(1, 0.01, WithLogger(nil), WithMetricsCollector(nil))
	mustInsert(t, qt, &unit{pos: Point{0.5, 0.5}})
	assert.Equal(t, 1, qt.Len())
	assert.True(t, errors.Is(&InsertError{}, ErrOutOfBounds))
}

func TestInsertQuery(t *testing.T) {
	nodeCapacity := 4
	qt := New[*unit](nodeCapacity, 0.01, Point{50.0, 50.0}, Point{150.0, 150.0})
	rng := rand.New(rand.NewSource(1))
	inserted := 100000
	for i := 0; i != inserted; i++ {
		u := &unit{pos: Point{rng.Float64()*100.0 + 50.0, rng.Float64()*100.0 + 50.0}}
		mustInsert(t, qt, u)
	}
	b := qt.Bounds()
	queried := len(qt.SearchRadius(b.Center(), b.Width()))
	assert.Equal(t, inserted, queried)
}
