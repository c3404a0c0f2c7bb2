// Package levels loads map definitions and places them into an ecs.World.
package levels

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/ecs/system"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/prefabs"
	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var LevelsFS embed.FS

// Dir is checked for a level file before the embedded copies.
var Dir = "levels"

var ErrInvalidLevel = errors.New("levels: invalid level")

type Level struct {
	Name      string     `yaml:"name"`
	Bounds    Bounds     `yaml:"bounds"`
	Obstacles []Obstacle `yaml:"obstacles"`
	Agents    []Agent    `yaml:"agents"`
}

type Bounds struct {
	Min [2]float64 `yaml:"min"`
	Max [2]float64 `yaml:"max"`
}

func (b Bounds) MapBounds() pathing.MapBounds {
	return pathing.MapBounds{
		Min: cp.Vector{X: b.Min[0], Y: b.Min[1]},
		Max: cp.Vector{X: b.Max[0], Y: b.Max[1]},
	}
}

type Obstacle struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Rotation float64 `yaml:"rotation"`
}

type Agent struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Speed  float64 `yaml:"speed"`
	Target *Target `yaml:"target"`
}

// Target is an agent's initial destination. Zero MaxEffort means the
// configured default.
type Target struct {
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Distance  float64 `yaml:"distance"`
	MaxEffort float64 `yaml:"max_effort"`
	Permanent bool    `yaml:"permanent"`
}

// Load reads the level name, preferring the copy under Dir.
func Load(name string) (*Level, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "levels/")
	if filepath.Ext(clean) == "" {
		clean += ".yaml"
	}
	data, err := os.ReadFile(filepath.Join(Dir, filepath.FromSlash(clean)))
	if err != nil {
		data, err = LevelsFS.ReadFile(clean)
	}
	if err != nil {
		return nil, fmt.Errorf("levels: read %s: %w", clean, err)
	}
	return Parse(data)
}

// Parse decodes and validates a level.
func Parse(data []byte) (*Level, error) {
	var lvl Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("levels: unmarshal: %w", err)
	}
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	return &lvl, nil
}

// Validate checks the bounds and that every entity has a unique name.
func (l *Level) Validate() error {
	if err := l.Bounds.MapBounds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	seen := make(map[string]bool, len(l.Obstacles)+len(l.Agents))
	check := func(name string) error {
		if name == "" {
			return fmt.Errorf("%w: entity without a name", ErrInvalidLevel)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidLevel, name)
		}
		seen[name] = true
		return nil
	}
	for _, o := range l.Obstacles {
		if err := check(o.Name); err != nil {
			return err
		}
		if o.Type == "" {
			return fmt.Errorf("%w: obstacle %q has no type", ErrInvalidLevel, o.Name)
		}
	}
	for _, a := range l.Agents {
		if err := check(a.Name); err != nil {
			return err
		}
		if a.Target != nil && (a.Target.Distance < 0 || a.Target.MaxEffort < 0) {
			return fmt.Errorf("%w: agent %q has a negative target distance", ErrInvalidLevel, a.Name)
		}
	}
	return nil
}

// Spawn creates the map bounds, obstacle and agent entities of l. Agents with
// a target get a path request for the next frame.
func Spawn(w *ecs.World, l *Level, defaults prefabs.AgentSpec) error {
	bounds := ecs.CreateEntity(w)
	if err := ecs.Add(w, bounds, component.MapBoundsComponent.Kind(), &component.MapBounds{MapBounds: l.Bounds.MapBounds()}); err != nil {
		return err
	}
	for _, o := range l.Obstacles {
		if _, err := SpawnObstacle(w, o); err != nil {
			return err
		}
	}
	for _, a := range l.Agents {
		if err := spawnAgent(w, a, defaults); err != nil {
			return err
		}
	}
	return nil
}

// SpawnObstacle creates one static obstacle.
func SpawnObstacle(w *ecs.World, o Obstacle) (ecs.Entity, error) {
	return system.SpawnObstacle(w, o.Name, pathing.ObjectType(o.Type), component.Transform{X: o.X, Y: o.Y, Rotation: o.Rotation})
}

func spawnAgent(w *ecs.World, a Agent, defaults prefabs.AgentSpec) error {
	speed := a.Speed
	if speed <= 0 {
		speed = defaults.Speed
	}
	e := ecs.CreateEntity(w)
	if err := ecs.Add(w, e, component.LabelComponent.Kind(), &component.Label{Name: a.Name}); err != nil {
		return err
	}
	if err := ecs.Add(w, e, component.TransformComponent.Kind(), &component.Transform{X: a.X, Y: a.Y}); err != nil {
		return err
	}
	if err := ecs.Add(w, e, component.MovableSolidComponent.Kind(), &component.MovableSolid{Speed: speed}); err != nil {
		return err
	}
	if a.Target == nil {
		return nil
	}

	maxEffort := a.Target.MaxEffort
	if maxEffort == 0 {
		maxEffort = defaults.MaxEffort
	}
	props := pathing.NewPathQueryProps(a.Target.Distance, math.Max(maxEffort, a.Target.Distance))
	system.RequestPath(w, e, pathing.NewPathTarget(cp.Vector{X: a.Target.X, Y: a.Target.Y}, props, a.Target.Permanent))
	return nil
}

// SyncObstacles makes the obstacles of w match l after a level file was
// edited. Obstacles are matched by name: missing ones are destroyed, moved or
// retyped ones are updated in place and new ones are created. It returns the
// number of entities touched.
func SyncObstacles(w *ecs.World, l *Level) (int, error) {
	wanted := make(map[string]Obstacle, len(l.Obstacles))
	for _, o := range l.Obstacles {
		wanted[o.Name] = o
	}

	touched := 0
	for _, e := range ecs.Query(w, component.StaticSolidComponent.Kind()) {
		label, ok := ecs.Get(w, e, component.LabelComponent.Kind())
		if !ok {
			continue
		}
		o, keep := wanted[label.Name]
		if !keep {
			ecs.DestroyEntity(w, e)
			touched++
			continue
		}
		delete(wanted, label.Name)

		t, _ := ecs.Get(w, e, component.TransformComponent.Kind())
		if t != nil && (t.X != o.X || t.Y != o.Y || t.Rotation != o.Rotation) {
			t.X, t.Y, t.Rotation = o.X, o.Y, o.Rotation
			ecs.MarkChanged(w, e, component.TransformComponent.Kind())
			touched++
		}
		solid, _ := ecs.Get(w, e, component.StaticSolidComponent.Kind())
		if solid.Type != pathing.ObjectType(o.Type) {
			if err := ecs.Add(w, e, component.StaticSolidComponent.Kind(), &component.StaticSolid{Type: pathing.ObjectType(o.Type)}); err != nil {
				return touched, err
			}
			touched++
		}
	}

	for _, o := range l.Obstacles {
		if _, missing := wanted[o.Name]; !missing {
			continue
		}
		if _, err := SpawnObstacle(w, o); err != nil {
			return touched, err
		}
		touched++
	}
	return touched, nil
}
