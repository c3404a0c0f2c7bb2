package system

import (
	"fmt"
	"math"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/prefabs"
)

// A scenario script defines update(engine, state, tick). It runs once per
// frame; state is a map kept between frames and across reloads.
const scenarioDispatchScript = `
update(__engine, __state, __tick)
`

// ScenarioSystem drives a simulation from a tengo script: it moves and
// removes obstacles and sends agents to new targets.
type ScenarioSystem struct {
	name     string
	log      logging.Logger
	compiled *tengo.Compiled
	state    *tengo.Map
	tick     int64
	failed   bool
}

// NewScenarioSystem compiles the named script from the prefabs scripts.
func NewScenarioSystem(name string, log logging.Logger) (*ScenarioSystem, error) {
	src, err := prefabs.LoadScript(name)
	if err != nil {
		return nil, fmt.Errorf("scenario: load %s: %w", name, err)
	}
	return NewScenarioSystemFromSource(name, src, log)
}

func NewScenarioSystemFromSource(name string, src []byte, log logging.Logger) (*ScenarioSystem, error) {
	s := &ScenarioSystem{
		name:  name,
		log:   logging.OrNoOp(log),
		state: &tengo.Map{Value: map[string]tengo.Object{}},
	}
	if err := s.compile(src); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ScenarioSystem) compile(src []byte) error {
	script := tengo.NewScript(append(append([]byte(nil), src...), scenarioDispatchScript...))
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	_ = script.Add("__tick", 0)
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("scenario: compile %s: %w", s.name, err)
	}
	s.compiled = compiled
	s.failed = false
	return nil
}

// Reload recompiles the script from disk or the embedded copy. The tick
// counter and script state survive; a script that fails to compile leaves the
// running one in place.
func (s *ScenarioSystem) Reload() error {
	src, err := prefabs.LoadScript(s.name)
	if err != nil {
		return fmt.Errorf("scenario: load %s: %w", s.name, err)
	}
	return s.compile(src)
}

// Tick is the number of frames the script has run.
func (s *ScenarioSystem) Tick() int64 {
	return s.tick
}

func (s *ScenarioSystem) Update(w *ecs.World) {
	if s == nil || w == nil || s.compiled == nil || s.failed {
		return
	}
	s.tick++
	if err := s.run(w); err != nil {
		// Stays stopped until Reload.
		s.failed = true
		s.log.Error("scenario: script stopped", "script", s.name, "tick", s.tick, "err", err)
	}
}

func (s *ScenarioSystem) run(w *ecs.World) error {
	if err := s.compiled.Set("__engine", buildScenarioEngine(w, s.log)); err != nil {
		return err
	}
	if err := s.compiled.Set("__state", s.state); err != nil {
		return err
	}
	if err := s.compiled.Set("__tick", s.tick); err != nil {
		return err
	}
	return s.compiled.Run()
}

func buildScenarioEngine(w *ecs.World, log logging.Logger) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["agents"] = &tengo.UserFunction{Name: "agents", Value: func(args ...tengo.Object) (tengo.Object, error) {
		names := Agents(w)
		out := make([]tengo.Object, len(names))
		for i, n := range names {
			out[i] = &tengo.String{Value: n}
		}
		return &tengo.Array{Value: out}, nil
	}}

	values["position"] = &tengo.UserFunction{Name: "position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		e, ok := FindLabeled(w, objectAsString(args[0]))
		if !ok {
			return tengo.UndefinedValue, nil
		}
		t, ok := ecs.Get(w, e, component.TransformComponent.Kind())
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: t.X}, &tengo.Float{Value: t.Y}}}, nil
	}}

	values["has_path"] = &tengo.UserFunction{Name: "has_path", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		e, ok := FindLabeled(w, objectAsString(args[0]))
		if ok && ecs.Has(w, e, component.PathComponent.Kind()) {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	// request_path(agent, x, y, distance, permanent[, max_effort])
	values["request_path"] = &tengo.UserFunction{Name: "request_path", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 5 || len(args) > 6 {
			return nil, tengo.ErrWrongNumArguments
		}
		e, ok := FindLabeled(w, objectAsString(args[0]))
		if !ok || !ecs.Has(w, e, component.MovableSolidComponent.Kind()) {
			return tengo.FalseValue, nil
		}
		nums, err := floatArgs("request_path", args[1:4]...)
		if err != nil {
			return nil, err
		}
		distance := math.Max(nums[2], 0)
		maxEffort := math.Inf(1)
		if len(args) == 6 {
			limit, err := floatArgs("request_path", args[5])
			if err != nil {
				return nil, err
			}
			maxEffort = math.Max(limit[0], distance)
		}
		permanent := !args[4].IsFalsy()
		target := pathing.NewPathTarget(cp.Vector{X: nums[0], Y: nums[1]}, pathing.NewPathQueryProps(distance, maxEffort), permanent)
		RequestPath(w, e, target)
		return tengo.TrueValue, nil
	}}

	// spawn_obstacle(name, type, x, y, rotation)
	values["spawn_obstacle"] = &tengo.UserFunction{Name: "spawn_obstacle", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 5 {
			return nil, tengo.ErrWrongNumArguments
		}
		name := objectAsString(args[0])
		if _, exists := FindLabeled(w, name); exists || name == "" {
			return tengo.FalseValue, nil
		}
		nums, err := floatArgs("spawn_obstacle", args[2:]...)
		if err != nil {
			return nil, err
		}
		t := component.Transform{X: nums[0], Y: nums[1], Rotation: nums[2]}
		if _, err := SpawnObstacle(w, name, pathing.ObjectType(objectAsString(args[1])), t); err != nil {
			return nil, err
		}
		return tengo.TrueValue, nil
	}}

	// move_obstacle(name, x, y, rotation)
	values["move_obstacle"] = &tengo.UserFunction{Name: "move_obstacle", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 4 {
			return nil, tengo.ErrWrongNumArguments
		}
		e, ok := FindLabeled(w, objectAsString(args[0]))
		if !ok || !ecs.Has(w, e, component.StaticSolidComponent.Kind()) {
			return tengo.FalseValue, nil
		}
		nums, err := floatArgs("move_obstacle", args[1:]...)
		if err != nil {
			return nil, err
		}
		t, _ := ecs.Get(w, e, component.TransformComponent.Kind())
		if t == nil {
			return tengo.FalseValue, nil
		}
		t.X, t.Y, t.Rotation = nums[0], nums[1], nums[2]
		ecs.MarkChanged(w, e, component.TransformComponent.Kind())
		return tengo.TrueValue, nil
	}}

	values["remove_obstacle"] = &tengo.UserFunction{Name: "remove_obstacle", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		e, ok := FindLabeled(w, objectAsString(args[0]))
		if !ok || !ecs.Has(w, e, component.StaticSolidComponent.Kind()) {
			return tengo.FalseValue, nil
		}
		ecs.DestroyEntity(w, e)
		return tengo.TrueValue, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = objectAsString(a)
		}
		log.Info("scenario: " + strings.Join(parts, " "))
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func floatArgs(fn string, args ...tengo.Object) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := tengo.ToFloat64(a)
		if !ok || math.IsNaN(f) {
			return nil, tengo.ErrInvalidArgumentType{Name: fmt.Sprintf("%s argument %d", fn, i+1), Expected: "float(compatible)", Found: a.TypeName()}
		}
		out[i] = f
	}
	return out, nil
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}
