package pathing

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = MapBounds{Min: cp.Vector{X: -50, Y: -50}, Max: cp.Vector{X: 50, Y: 50}}

func randomObstacles(seed int64, n int, bounds MapBounds) []ObstacleSnapshot {
	rng := rand.New(rand.NewSource(seed))
	types := []ObjectType{"crate", "wall", "pillar"}
	size := bounds.Size()
	out := make([]ObstacleSnapshot, n)
	for i := range out {
		out[i] = ObstacleSnapshot{
			Entity: uint64(i + 1),
			Position: cp.Vector{
				X: bounds.Min.X + rng.Float64()*size.X,
				Y: bounds.Min.Y + rng.Float64()*size.Y,
			},
			Rotation: rng.Float64() * 2 * math.Pi,
			Type:     types[rng.Intn(len(types))],
		}
	}
	return out
}

// samplesOf returns points spread over the interior of triangle i.
func samplesOf(m *NavMesh, i int) []cp.Vector {
	c := m.Corners(i)
	var out []cp.Vector
	const steps = 6
	for a := 1; a < steps; a++ {
		for b := 1; a+b < steps; b++ {
			wa, wb := float64(a)/steps, float64(b)/steps
			wc := 1 - wa - wb
			out = append(out, c[0].Mult(wa).Add(c[1].Mult(wb)).Add(c[2].Mult(wc)))
		}
	}
	return out
}

func requireMeshAvoidsExclusions(t *testing.T, m *NavMesh, area ExclusionArea) {
	t.Helper()
	for i := 0; i < m.Len(); i++ {
		c := m.Corners(i)
		require.Greater(t, orient(c[0], c[1], c[2]), 0.0, "triangle %d not counter-clockwise", i)
		for _, fp := range area.Footprints() {
			for _, p := range samplesOf(m, i) {
				require.False(t, strictlyInside(p, fp.Polygon, 1e-6), "triangle %d overlaps obstacle %d at %v", i, fp.Entity, p)
			}
			for k := 0; k < 3; k++ {
				a, b := c[k], c[(k+1)%3]
				for j := range fp.Polygon {
					p, q := fp.Polygon[j], fp.Polygon[(j+1)%len(fp.Polygon)]
					require.False(t, segmentsCrossProperly(a, b, p, q) && distanceToSegment(a, p, q) > 1e-6 && distanceToSegment(b, p, q) > 1e-6,
						"triangle %d edge crosses obstacle %d", i, fp.Entity)
				}
			}
		}
	}
}

func TestTriangulateEmptyMap(t *testing.T) {
	m, err := Triangulate(testBounds, ExclusionArea{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.InDelta(t, 10000, m.Area(), 1e-6)
	for i := 0; i < m.Len(); i++ {
		n := 0
		for _, nb := range m.Triangle(i).Neighbors {
			if nb >= 0 {
				n++
			}
		}
		assert.Equal(t, 1, n)
	}
}

func TestTriangulateSingleObstacle(t *testing.T) {
	area := BuildExclusions(testCache, []ObstacleSnapshot{{Entity: 1, Type: "crate"}}, ExclusionOffset, nil)
	m, err := Triangulate(testBounds, area)
	require.NoError(t, err)

	requireMeshAvoidsExclusions(t, m, area)
	hole := signedArea(area.Footprints()[0].Polygon)
	assert.InDelta(t, 10000-hole, m.Area(), 1e-6)
	assert.False(t, m.Contains(cp.Vector{}))
	assert.True(t, m.Contains(cp.Vector{X: 20, Y: 20}))
}

func TestTriangulateObstacleOnBoundary(t *testing.T) {
	obstacles := []ObstacleSnapshot{
		{Entity: 1, Type: "wall", Position: cp.Vector{X: -50, Y: 0}},
		{Entity: 2, Type: "crate", Position: cp.Vector{X: 50, Y: 50}, Rotation: 0.3},
	}
	area := BuildExclusions(testCache, obstacles, ExclusionOffset, nil)
	m, err := Triangulate(testBounds, area)
	require.NoError(t, err)
	requireMeshAvoidsExclusions(t, m, area)
	for i := 0; i < m.Len(); i++ {
		for _, v := range m.Corners(i) {
			grown := MapBounds{Min: testBounds.Min.Sub(cp.Vector{X: 1e-6, Y: 1e-6}), Max: testBounds.Max.Add(cp.Vector{X: 1e-6, Y: 1e-6})}
			assert.True(t, grown.Contains(v), "vertex %v outside bounds", v)
		}
	}
	assert.False(t, m.Contains(cp.Vector{X: -45, Y: 0}))
	assert.True(t, m.Contains(cp.Vector{X: 0, Y: 0}))
}

func TestTriangulateOverlappingObstacles(t *testing.T) {
	obstacles := []ObstacleSnapshot{
		{Entity: 1, Type: "wall"},
		{Entity: 2, Type: "wall", Rotation: math.Pi / 2},
		{Entity: 3, Type: "crate", Position: cp.Vector{X: 4, Y: 4}},
		{Entity: 4, Type: "crate", Position: cp.Vector{X: 4, Y: 4}},
	}
	area := BuildExclusions(testCache, obstacles, ExclusionOffset, nil)
	m, err := Triangulate(testBounds, area)
	require.NoError(t, err)
	requireMeshAvoidsExclusions(t, m, area)
	assert.True(t, m.Contains(cp.Vector{X: 30, Y: 30}))
	assert.False(t, m.Contains(cp.Vector{X: 18, Y: 0}))
}

func TestTriangulateMatchesExclusionsEverywhere(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		obstacles := randomObstacles(seed, 60, testBounds)
		area := BuildExclusions(testCache, obstacles, ExclusionOffset, nil)
		m, err := Triangulate(testBounds, area)
		require.NoError(t, err, "seed %d", seed)
		requireMeshAvoidsExclusions(t, m, area)

		rng := rand.New(rand.NewSource(seed * 100))
		for i := 0; i < 2000; i++ {
			p := cp.Vector{X: -50 + rng.Float64()*100, Y: -50 + rng.Float64()*100}
			blocked, free := false, true
			for _, fp := range area.Footprints() {
				if strictlyInside(p, fp.Polygon, 1e-6) {
					blocked = true
				}
				if pointInPolygon(p, fp.Polygon, 1e-6) {
					free = false
				}
			}
			if blocked {
				assert.False(t, m.Contains(p), "seed %d: %v inside obstacle is on the mesh", seed, p)
			}
			if free {
				assert.True(t, m.Contains(p), "seed %d: free point %v not on the mesh", seed, p)
			}
		}
	}
}

func TestTriangulateAreaIsIdempotent(t *testing.T) {
	area := BuildExclusions(testCache, randomObstacles(42, 40, testBounds), ExclusionOffset, nil)
	first, err := Triangulate(testBounds, area)
	require.NoError(t, err)
	second, err := Triangulate(testBounds, area)
	require.NoError(t, err)
	assert.InDelta(t, first.Area(), second.Area(), 1e-6)
	assert.Less(t, first.Area(), 10000.0)
}

func TestTriangulateRejectsMalformedPolygons(t *testing.T) {
	cases := []struct {
		name    string
		polygon []cp.Vector
	}{
		{"too_few_vertices", []cp.Vector{{X: 0, Y: 0}, {X: 1, Y: 0}}},
		{"zero_area", []cp.Vector{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}},
		{"bow_tie", []cp.Vector{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}}},
		{"duplicate_vertex", []cp.Vector{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 0}, {X: 0, Y: 5}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			area := NewExclusionArea(NewObjectFootprint(9, c.polygon))
			m, err := Triangulate(testBounds, area)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPolygon))
			assert.Nil(t, m)
		})
	}
}

func TestTriangulateRejectsInvalidBounds(t *testing.T) {
	_, err := Triangulate(MapBounds{Min: cp.Vector{X: 1, Y: 1}, Max: cp.Vector{X: 1, Y: 5}}, ExclusionArea{})
	require.Error(t, err)
}

func TestTriangulateConcaveObstacle(t *testing.T) {
	// A U shape given directly as a map space polygon.
	u := []cp.Vector{
		{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: 6, Y: 10},
		{X: 6, Y: -6}, {X: -6, Y: -6}, {X: -6, Y: 10}, {X: -10, Y: 10},
	}
	area := NewExclusionArea(NewObjectFootprint(1, u))
	m, err := Triangulate(testBounds, area)
	require.NoError(t, err)
	assert.True(t, m.Contains(cp.Vector{X: 0, Y: 5}), "inside of the U is free")
	assert.False(t, m.Contains(cp.Vector{X: 8, Y: 0}))
	assert.InDelta(t, 10000-math.Abs(signedArea(u)), m.Area(), 1e-6)
}

func BenchmarkTriangulate(b *testing.B) {
	area := BuildExclusions(testCache, randomObstacles(7, 200, MapBounds{Max: cp.Vector{X: 400, Y: 400}}), ExclusionOffset, nil)
	bounds := MapBounds{Max: cp.Vector{X: 400, Y: 400}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Triangulate(bounds, area); err != nil {
			b.Fatal(err)
		}
	}
}
