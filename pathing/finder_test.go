package pathing

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFinder(t testing.TB, obstacles ...ObstacleSnapshot) *PathFinder {
	t.Helper()
	f, err := CreateFinder(testCache, testBounds, obstacles, ExclusionOffset, nil)
	require.NoError(t, err)
	return f
}

// requirePathOnMesh checks that every segment of path stays on the mesh and
// out of every exclusion interior.
func requirePathOnMesh(t *testing.T, f *PathFinder, path Path) {
	t.Helper()
	for i := 1; i < path.Len(); i++ {
		a, b := path.Waypoints[i-1], path.Waypoints[i]
		if i == 1 && !f.Mesh().Contains(a) {
			// A source snapped onto the mesh starts off it.
			continue
		}
		const samples = 64
		for s := 0; s <= samples; s++ {
			p := a.Lerp(b, float64(s)/samples)
			require.True(t, f.Mesh().Contains(p), "segment %d leaves the mesh at %v", i, p)
			for _, fp := range f.Exclusions().Footprints() {
				require.False(t, strictlyInside(p, fp.Polygon, 1e-6), "segment %d enters obstacle %d", i, fp.Entity)
			}
		}
	}
}

func TestFindPathEmptyMapIsStraight(t *testing.T) {
	f := NewPathFinder(testBounds)
	target := NewPathTarget(cp.Vector{X: 10}, NewPathQueryProps(0.5, math.Inf(1)), false)
	path, ok := f.FindPath(cp.Vector{}, target)
	require.True(t, ok)
	assert.Equal(t, []cp.Vector{{}, {X: 10}}, path.Waypoints)
	assert.InDelta(t, 10, path.Length(), 1e-9)
}

func TestFindPathAcrossTriangles(t *testing.T) {
	f := NewPathFinder(testBounds)
	target := NewPathTarget(cp.Vector{X: -40, Y: 40}, ExactPathQueryProps(), false)
	path, ok := f.FindPath(cp.Vector{X: 40, Y: -40}, target)
	require.True(t, ok)
	assert.Equal(t, []cp.Vector{{X: 40, Y: -40}, {X: -40, Y: 40}}, path.Waypoints)
}

func TestFindPathRoutesAroundObstacle(t *testing.T) {
	f := mustFinder(t, ObstacleSnapshot{Entity: 1, Type: "crate"})
	source, dest := cp.Vector{X: -20}, cp.Vector{X: 20}
	path, ok := f.FindPath(source, NewPathTarget(dest, NewPathQueryProps(0.5, math.Inf(1)), false))
	require.True(t, ok)

	assert.Equal(t, source, path.Waypoints[0])
	end, _ := path.Destination()
	assert.Equal(t, dest, end)
	assert.Greater(t, path.Len(), 2)
	assert.Greater(t, path.Length(), 40.0)
	// The detour hugs the footprint.
	assert.Less(t, path.Length(), 50.0)
	requirePathOnMesh(t, f, path)
}

func TestFindPathTargetInsideObstacle(t *testing.T) {
	f := mustFinder(t, ObstacleSnapshot{Entity: 1, Type: "crate"})
	_, ok := f.FindPath(cp.Vector{X: -20}, NewPathTarget(cp.Vector{}, NewPathQueryProps(0.5, math.Inf(1)), false))
	assert.False(t, ok)
}

func TestFindPathTargetWithinTolerance(t *testing.T) {
	f := mustFinder(t, ObstacleSnapshot{Entity: 1, Type: "crate"})
	target := NewPathTarget(cp.Vector{}, NewPathQueryProps(10, math.Inf(1)), false)
	path, ok := f.FindPath(cp.Vector{X: -20}, target)
	require.True(t, ok)
	end, _ := path.Destination()
	assert.LessOrEqual(t, end.Distance(target.Location), 10.0+1e-6)
	assert.Greater(t, end.Distance(target.Location), 5.0)
	requirePathOnMesh(t, f, path)
}

func TestFindPathSource(t *testing.T) {
	f := mustFinder(t, ObstacleSnapshot{Entity: 1, Type: "crate"})
	footprint := f.Exclusions().Footprints()[0]
	edge := footprint.BB().L

	cases := []struct {
		name   string
		source cp.Vector
		ok     bool
		snaps  bool
	}{
		{"on_mesh", cp.Vector{X: -20}, true, false},
		{"near_mesh", cp.Vector{X: edge + 0.5}, true, true},
		{"deep_inside_obstacle", cp.Vector{}, false, false},
		{"outside_bounds", cp.Vector{X: -60}, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path, ok := f.FindPath(c.source, NewPathTarget(cp.Vector{X: -30, Y: 30}, ExactPathQueryProps(), false))
			require.Equal(t, c.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, c.source, path.Waypoints[0])
			if c.snaps {
				assert.InDelta(t, 0.5, path.Waypoints[0].Distance(path.Waypoints[1]), 1e-6)
			}
			requirePathOnMesh(t, f, path)
		})
	}
}

func TestFindPathMaxEffort(t *testing.T) {
	f := mustFinder(t, ObstacleSnapshot{Entity: 1, Type: "crate"})
	source, dest := cp.Vector{X: -20}, cp.Vector{X: 20}

	_, ok := f.FindPath(source, NewPathTarget(dest, NewPathQueryProps(0.5, 30), false))
	assert.False(t, ok, "straight line distance already exceeds the effort")

	_, ok = f.FindPath(source, NewPathTarget(dest, NewPathQueryProps(0.5, 41), false))
	assert.False(t, ok, "detour exceeds the effort")

	_, ok = f.FindPath(source, NewPathTarget(dest, NewPathQueryProps(0.5, 150), false))
	assert.True(t, ok)
}

func TestFindPathUnreachableRegion(t *testing.T) {
	// Walls closing off the top right corner.
	f := mustFinder(t,
		ObstacleSnapshot{Entity: 1, Type: "wall", Position: cp.Vector{X: 30, Y: 10}},
		ObstacleSnapshot{Entity: 2, Type: "wall", Position: cp.Vector{X: 10, Y: 30}, Rotation: math.Pi / 2},
	)
	_, ok := f.FindPath(cp.Vector{X: -30, Y: -30}, NewPathTarget(cp.Vector{X: 40, Y: 40}, ExactPathQueryProps(), true))
	assert.False(t, ok)
	_, ok = f.FindPath(cp.Vector{X: 35, Y: 35}, NewPathTarget(cp.Vector{X: 40, Y: 40}, ExactPathQueryProps(), true))
	assert.True(t, ok)
}

func TestFindPathRandomMapsStayOnMesh(t *testing.T) {
	f := mustFinder(t, randomObstacles(5, 20, testBounds)...)
	rng := rand.New(rand.NewSource(11))
	found := 0
	for i := 0; i < 200; i++ {
		source := cp.Vector{X: -50 + rng.Float64()*100, Y: -50 + rng.Float64()*100}
		dest := cp.Vector{X: -50 + rng.Float64()*100, Y: -50 + rng.Float64()*100}
		path, ok := f.FindPath(source, NewPathTarget(dest, NewPathQueryProps(1, math.Inf(1)), false))
		if !ok {
			continue
		}
		found++
		assert.Equal(t, source, path.Waypoints[0])
		assert.GreaterOrEqual(t, path.Length()+1e-9, source.Distance(dest)-1)
		requirePathOnMesh(t, f, path)
	}
	assert.Greater(t, found, 20)
}

func TestFindPathConcurrentMatchesSequential(t *testing.T) {
	f := mustFinder(t, randomObstacles(9, 20, testBounds)...)
	rng := rand.New(rand.NewSource(3))
	type query struct {
		source cp.Vector
		target PathTarget
	}
	queries := make([]query, 64)
	for i := range queries {
		queries[i] = query{
			source: cp.Vector{X: -50 + rng.Float64()*100, Y: -50 + rng.Float64()*100},
			target: NewPathTarget(cp.Vector{X: -50 + rng.Float64()*100, Y: -50 + rng.Float64()*100}, NewPathQueryProps(1, math.Inf(1)), false),
		}
	}

	type answer struct {
		path Path
		ok   bool
	}
	sequential := make([]answer, len(queries))
	for i, q := range queries {
		sequential[i].path, sequential[i].ok = f.FindPath(q.source, q.target)
	}

	concurrent := make([]answer, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			concurrent[i].path, concurrent[i].ok = f.FindPath(q.source, q.target)
		}()
	}
	wg.Wait()
	assert.Equal(t, sequential, concurrent)
}

func TestStringPull(t *testing.T) {
	// Corridor bending left around the point (5, 5).
	portals := []portalEdge{
		{left: cp.Vector{X: 5, Y: 5}, right: cp.Vector{X: 5, Y: -5}},
		{left: cp.Vector{X: 5, Y: 5}, right: cp.Vector{X: 10, Y: 5}},
	}
	got := stringPull(cp.Vector{}, cp.Vector{X: 0, Y: 20}, portals, 1e-9)
	assert.Equal(t, []cp.Vector{{}, {X: 5, Y: 5}, {X: 0, Y: 20}}, got)

	straight := stringPull(cp.Vector{}, cp.Vector{X: 20}, []portalEdge{{left: cp.Vector{X: 5, Y: 5}, right: cp.Vector{X: 5, Y: -5}}}, 1e-9)
	assert.Equal(t, []cp.Vector{{}, {X: 20}}, straight)
}

func BenchmarkCreateFinder(b *testing.B) {
	bounds := MapBounds{Max: cp.Vector{X: 400, Y: 400}}
	obstacles := randomObstacles(7, 200, bounds)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := CreateFinder(testCache, bounds, obstacles, ExclusionOffset, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindPath(b *testing.B) {
	bounds := MapBounds{Max: cp.Vector{X: 400, Y: 400}}
	f, err := CreateFinder(testCache, bounds, randomObstacles(7, 200, bounds), ExclusionOffset, nil)
	require.NoError(b, err)
	target := NewPathTarget(cp.Vector{X: 390, Y: 390}, NewPathQueryProps(5, math.Inf(1)), false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.FindPath(cp.Vector{X: 10, Y: 10}, target)
	}
}
