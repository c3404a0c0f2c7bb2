package system

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/prefabs"
	"github.com/milk9111/navmesh/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = pathing.MapBounds{Min: cp.Vector{X: -50, Y: -50}, Max: cp.Vector{X: 50, Y: 50}}

func testCatalog(t testing.TB) *prefabs.ObjectCatalog {
	t.Helper()
	c, err := prefabs.NewObjectCatalog([]prefabs.ObjectSpec{
		{Name: "crate", Box: &prefabs.BoxSpec{Width: 10, Height: 10}},
		{Name: "pillar", Radius: 3},
	})
	require.NoError(t, err)
	return c
}

type pathingWorld struct {
	w  *ecs.World
	ps *PathingSystems
}

// newPathingWorld builds a world with map bounds and the pathing systems.
// before runs ahead of pathing in every frame.
func newPathingWorld(t *testing.T, runner tasks.Runner, before ...ecs.System) *pathingWorld {
	t.Helper()
	w := ecs.NewWorld()
	bounds := ecs.CreateEntity(w)
	require.NoError(t, ecs.Add(w, bounds, component.MapBoundsComponent.Kind(), &component.MapBounds{MapBounds: testBounds}))
	ps := NewPathingSystems(PathingConfig{
		Cache:  testCatalog(t),
		Runner: runner,
		Finder: pathing.FinderConfig{Offset: pathing.ExclusionOffset},
	})
	for _, s := range before {
		w.AddSystem(s)
	}
	w.AddSystem(ps)
	return &pathingWorld{w: w, ps: ps}
}

func (pw *pathingWorld) obstacle(t *testing.T, name string, objectType pathing.ObjectType, x, y float64) ecs.Entity {
	t.Helper()
	e, err := SpawnObstacle(pw.w, name, objectType, component.Transform{X: x, Y: y})
	require.NoError(t, err)
	return e
}

func (pw *pathingWorld) agent(t *testing.T, x, y float64) ecs.Entity {
	t.Helper()
	e := ecs.CreateEntity(pw.w)
	require.NoError(t, ecs.Add(pw.w, e, component.TransformComponent.Kind(), &component.Transform{X: x, Y: y}))
	require.NoError(t, ecs.Add(pw.w, e, component.MovableSolidComponent.Kind(), &component.MovableSolid{Speed: 10}))
	return e
}

func pathOf(t *testing.T, w *ecs.World, e ecs.Entity) pathing.Path {
	t.Helper()
	p, ok := ecs.Get(w, e, component.PathComponent.Kind())
	require.True(t, ok, "entity %s has no path", e)
	return p.Path
}

func TestPathingSystemsWaitForMapBounds(t *testing.T) {
	w := ecs.NewWorld()
	ps := NewPathingSystems(PathingConfig{Cache: testCatalog(t)})
	w.AddSystem(ps)
	w.Update()
	assert.Nil(t, ps.Finder())
	assert.Nil(t, ps.FinderScheduler())

	e := ecs.CreateEntity(w)
	require.NoError(t, ecs.Add(w, e, component.MapBoundsComponent.Kind(), &component.MapBounds{MapBounds: testBounds}))
	w.Update()
	require.NotNil(t, ps.Finder())
	assert.False(t, ps.FinderScheduler().Invalid())
}

func TestRequestPathAroundObstacle(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	pw.obstacle(t, "crate", "crate", 0, 0)
	agent := pw.agent(t, -20, 0)

	var updates int
	pw.w.AddSystem(ecs.SystemFunc(func(w *ecs.World) {
		updates += w.Events().Count(FinderUpdatedEvent)
	}))

	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{X: 20}, pathing.NewPathQueryProps(0.5, math.Inf(1)), false))
	pw.w.Update()

	assert.Equal(t, 1, updates)
	path := pathOf(t, pw.w, agent)
	assert.Greater(t, path.Length(), 40.0)
	end, _ := path.Destination()
	assert.Equal(t, cp.Vector{X: 20}, end)
	assert.True(t, ecs.Has(pw.w, agent, component.PathTargetComponent.Kind()))
	assert.Equal(t, 1, pw.ps.Finder().Exclusions().Len())
}

func TestUnreachableTargetIsCleared(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	pw.obstacle(t, "crate", "crate", 0, 0)
	agent := pw.agent(t, -20, 0)

	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{}, pathing.NewPathQueryProps(0.5, math.Inf(1)), false))
	pw.w.Update()

	assert.False(t, ecs.Has(pw.w, agent, component.PathComponent.Kind()))
	assert.False(t, ecs.Has(pw.w, agent, component.PathTargetComponent.Kind()))
	assert.Zero(t, pw.ps.PathScheduler().Len())
}

func TestPermanentTargetIsRetriedAfterObstacleRemoval(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	crate := pw.obstacle(t, "crate", "crate", 0, 0)
	agent := pw.agent(t, -20, 0)

	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{}, pathing.ExactPathQueryProps(), true))
	pw.w.Update()
	assert.False(t, ecs.Has(pw.w, agent, component.PathComponent.Kind()))
	require.True(t, ecs.Has(pw.w, agent, component.PathTargetComponent.Kind()), "permanent targets stay")

	require.True(t, ecs.DestroyEntity(pw.w, crate))
	pw.w.Update()
	path := pathOf(t, pw.w, agent)
	assert.InDelta(t, 20, path.Length(), 1e-9)
}

func TestObstacleRemovalShortensPath(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	crate := pw.obstacle(t, "crate", "crate", 0, 0)
	agent := pw.agent(t, -20, 0)

	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{X: 20}, pathing.NewPathQueryProps(0.5, math.Inf(1)), false))
	pw.w.Update()
	before := pathOf(t, pw.w, agent)
	first := pw.ps.Finder()

	require.True(t, ecs.DestroyEntity(pw.w, crate))
	pw.w.Update()
	after := pathOf(t, pw.w, agent)

	assert.NotEqual(t, first.ID(), pw.ps.Finder().ID())
	assert.Less(t, after.Length(), before.Length())
	assert.InDelta(t, 40, after.Length(), 1e-9)
	assert.Equal(t, []cp.Vector{{X: -20}, {X: 20}}, after.Waypoints)
}

func TestMovedObstacleInvalidatesFinder(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	crate := pw.obstacle(t, "crate", "crate", 0, 0)
	pw.w.Update()
	first := pw.ps.Finder()

	pw.w.Update()
	assert.Same(t, first, pw.ps.Finder(), "no rebuild without changes")

	tr, _ := ecs.Get(pw.w, crate, component.TransformComponent.Kind())
	tr.X = 30
	ecs.MarkChanged(pw.w, crate, component.TransformComponent.Kind())
	pw.w.Update()
	require.NotSame(t, first, pw.ps.Finder())
	assert.False(t, pw.ps.Finder().Exclusions().Contains(cp.Vector{}, 1e-9))
	assert.True(t, pw.ps.Finder().Exclusions().Contains(cp.Vector{X: 30}, 1e-9))
}

func TestAgentMovesDoNotInvalidateFinder(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	pw.obstacle(t, "crate", "crate", 0, 0)
	agent := pw.agent(t, -20, 0)
	pw.w.Update()
	first := pw.ps.Finder()

	tr, _ := ecs.Get(pw.w, agent, component.TransformComponent.Kind())
	tr.Y = 5
	ecs.MarkChanged(pw.w, agent, component.TransformComponent.Kind())
	pw.w.Update()
	assert.Same(t, first, pw.ps.Finder())
}

func TestFinderBuildsCoalesce(t *testing.T) {
	runner := &tasks.ManualRunner{}
	pw := newPathingWorld(t, runner)
	crate := pw.obstacle(t, "crate", "crate", 0, 0)

	pw.w.Update()
	require.Equal(t, 1, runner.Pending())
	initial := pw.ps.Finder()
	assert.Equal(t, 0, initial.Exclusions().Len(), "obstacle free finder until the first build lands")

	for i := 0; i < 3; i++ {
		tr, _ := ecs.Get(pw.w, crate, component.TransformComponent.Kind())
		tr.X += 5
		ecs.MarkChanged(pw.w, crate, component.TransformComponent.Kind())
		pw.w.Update()
		assert.Equal(t, 1, runner.Pending(), "one build in flight at a time")
	}
	assert.True(t, pw.ps.FinderScheduler().Invalid())

	runner.RunPending()
	pw.w.Update()
	assert.NotSame(t, initial, pw.ps.Finder())
	assert.Zero(t, runner.Pending(), "the follow up starts on the next frame")

	pw.w.Update()
	require.Equal(t, 1, runner.Pending())
	runner.RunPending()
	pw.w.Update()
	assert.True(t, pw.ps.Finder().Exclusions().Contains(cp.Vector{X: 15}, 1e-9))

	pw.w.Update()
	assert.Zero(t, runner.Pending())
}

func TestUnknownObstacleTypeIsSkipped(t *testing.T) {
	pw := newPathingWorld(t, tasks.InlineRunner{})
	pw.obstacle(t, "ghost", "dragon", 0, 0)
	agent := pw.agent(t, -20, 0)

	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{X: 20}, pathing.ExactPathQueryProps(), false))
	pw.w.Update()

	assert.Zero(t, pw.ps.Finder().Exclusions().Len())
	assert.Equal(t, []cp.Vector{{X: -20}, {X: 20}}, pathOf(t, pw.w, agent).Waypoints)
}

func TestLatestRequestWins(t *testing.T) {
	runner := &tasks.ManualRunner{}
	pw := newPathingWorld(t, runner)
	pw.w.Update()
	runner.RunPending()
	pw.w.Update()

	agent := pw.agent(t, 0, 0)
	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{X: 10}, pathing.ExactPathQueryProps(), false))
	pw.w.Update()
	RequestPath(pw.w, agent, pathing.NewPathTarget(cp.Vector{Y: -10}, pathing.ExactPathQueryProps(), false))
	pw.w.Update()
	require.Equal(t, 2, runner.Pending())

	runner.RunPending()
	pw.w.Update()
	end, _ := pathOf(t, pw.w, agent).Destination()
	assert.Equal(t, cp.Vector{Y: -10}, end)
	target, _ := ecs.Get(pw.w, agent, component.PathTargetComponent.Kind())
	assert.Equal(t, cp.Vector{Y: -10}, target.Location)
}

func TestAgentsNearTargetAreNotRequeued(t *testing.T) {
	runner := &tasks.ManualRunner{}
	pw := newPathingWorld(t, runner)
	crate := pw.obstacle(t, "crate", "crate", 30, 30)
	pw.w.Update()
	runner.RunPending()
	pw.w.Update()

	near := pw.agent(t, 1, 0)
	far := pw.agent(t, -40, 0)
	target := pathing.NewPathTarget(cp.Vector{}, pathing.NewPathQueryProps(0, math.Inf(1)), true)
	require.NoError(t, ecs.Add(pw.w, near, component.PathTargetComponent.Kind(), &component.PathTarget{PathTarget: target}))
	require.NoError(t, ecs.Add(pw.w, far, component.PathTargetComponent.Kind(), &component.PathTarget{PathTarget: target}))

	ecs.DestroyEntity(pw.w, crate)
	pw.w.Update()
	require.Equal(t, 1, runner.RunPending())
	pw.w.Update()
	assert.False(t, pw.ps.PathScheduler().InFlight(near.Key()))
	assert.True(t, pw.ps.PathScheduler().InFlight(far.Key()))
}
