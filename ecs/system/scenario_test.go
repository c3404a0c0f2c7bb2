package system

import (
	"testing"

	"github.com/d5/tengo/v2"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockerScript = `
update := func(engine, state, tick) {
	if tick == 1 {
		engine.spawn_obstacle("box", "crate", 0.0, 0.0, 0.0)
		for _, name in engine.agents() {
			engine.request_path(name, 20.0, 0.0, 0.5, true)
		}
	}
	if tick == 3 {
		engine.remove_obstacle("box")
	}
	state.last = tick
	state.has_path = engine.has_path("scout")
}
`

func TestScenarioDrivesPathing(t *testing.T) {
	scenario, err := NewScenarioSystemFromSource("blocker", []byte(blockerScript), nil)
	require.NoError(t, err)
	pw := newPathingWorld(t, tasks.InlineRunner{}, scenario)
	w := pw.w

	scout := pw.agent(t, -20, 0)
	require.NoError(t, ecs.Add(w, scout, component.LabelComponent.Kind(), &component.Label{Name: "scout"}))

	w.Update()
	box, ok := FindLabeled(w, "box")
	require.True(t, ok)
	assert.True(t, ecs.Has(w, box, component.StaticSolidComponent.Kind()))
	assert.Greater(t, pathOf(t, w, scout).Length(), 40.0)

	w.Update()
	assert.Equal(t, tengo.TrueValue, scenario.state.Value["has_path"])
	w.Update()
	_, ok = FindLabeled(w, "box")
	assert.False(t, ok)
	assert.Equal(t, []cp.Vector{{X: -20}, {X: 20}}, pathOf(t, w, scout).Waypoints)

	assert.Equal(t, int64(3), scenario.Tick())
	assert.Equal(t, &tengo.Int{Value: 3}, scenario.state.Value["last"])
}

func TestScenarioMovesObstacles(t *testing.T) {
	src := `
update := func(engine, state, tick) {
	if tick == 1 {
		engine.spawn_obstacle("p", "pillar", 1, 2, 0)
	} else {
		engine.move_obstacle("p", 5.0, 6.0, 0.5)
		state.pos = engine.position("p")
	}
}
`
	scenario, err := NewScenarioSystemFromSource("mover", []byte(src), nil)
	require.NoError(t, err)
	w := ecs.NewWorld()
	w.AddSystem(scenario)

	w.Update()
	p, ok := FindLabeled(w, "p")
	require.True(t, ok)
	tr, _ := ecs.Get(w, p, component.TransformComponent.Kind())
	assert.Equal(t, component.Transform{X: 1, Y: 2}, *tr)

	mark := w.Seq()
	w.Update()
	assert.Equal(t, component.Transform{X: 5, Y: 6, Rotation: 0.5}, *tr)
	var changed []ecs.Entity
	ecs.ChangedSince(w, component.TransformComponent.Kind(), mark, func(e ecs.Entity, _ *component.Transform) {
		changed = append(changed, e)
	})
	assert.Equal(t, []ecs.Entity{p}, changed)
	pos, ok := scenario.state.Value["pos"].(*tengo.Array)
	require.True(t, ok)
	assert.Equal(t, []tengo.Object{&tengo.Float{Value: 5}, &tengo.Float{Value: 6}}, pos.Value)
}

func TestScenarioErrors(t *testing.T) {
	_, err := NewScenarioSystemFromSource("empty", []byte(`x := 1`), nil)
	assert.Error(t, err, "a script without update does not compile")

	broken, err := NewScenarioSystemFromSource("broken", []byte(`update := func(engine, state, tick) { engine.position() }`), nil)
	require.NoError(t, err)
	w := ecs.NewWorld()
	w.AddSystem(broken)
	w.Update()
	w.Update()
	assert.Equal(t, int64(1), broken.Tick(), "a failing script stops")

	_, err = NewScenarioSystem("does_not_exist", nil)
	assert.Error(t, err)
}

func TestEmbeddedPatrolScriptCompiles(t *testing.T) {
	s, err := NewScenarioSystem("patrol", nil)
	require.NoError(t, err)
	w := ecs.NewWorld()
	w.AddSystem(s)
	w.Update()
	assert.Equal(t, int64(1), s.Tick())
	assert.Equal(t, &tengo.Int{Value: 1}, s.state.Value["leg"])
}
