// Package sim assembles a world from a level, the object catalog and an
// optional scenario script, and steps it frame by frame. Both commands share
// it.
package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/ecs/system"
	"github.com/milk9111/navmesh/levels"
	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/prefabs"
	"github.com/milk9111/navmesh/tasks"
)

type Options struct {
	Level  string
	Script string
	// Workers overrides the pool size from pathing.yaml when positive.
	Workers int
	// Watch enables hot reload of prefab, level and script files found on
	// disk.
	Watch bool
	// Inline runs finder builds and path searches on the calling goroutine.
	Inline bool
	Log    logging.Logger
}

type Simulation struct {
	World    *ecs.World
	Pathing  *system.PathingSystems
	Scenario *system.ScenarioSystem
	Catalog  *prefabs.ObjectCatalog
	Spec     prefabs.PathingSpec
	Level    *levels.Level

	log     logging.Logger
	pool    *tasks.Pool
	watcher *prefabs.Watcher
	frames  int64
}

func New(opts Options) (*Simulation, error) {
	log := logging.OrNoOp(opts.Log)

	spec, err := prefabs.LoadPathingSpec()
	if err != nil {
		return nil, err
	}
	catalog, err := prefabs.LoadObjectCatalog()
	if err != nil {
		return nil, err
	}
	lvl, err := levels.Load(opts.Level)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		World:   ecs.NewWorld(),
		Catalog: catalog,
		Spec:    spec,
		Level:   lvl,
		log:     log,
	}

	var runner tasks.Runner = tasks.InlineRunner{}
	if !opts.Inline {
		workers := spec.Workers
		if opts.Workers > 0 {
			workers = opts.Workers
		}
		s.pool = tasks.NewPool(workers)
		runner = s.pool
	}

	if opts.Script != "" {
		s.Scenario, err = system.NewScenarioSystem(opts.Script, log)
		if err != nil {
			return nil, err
		}
		s.World.AddSystem(s.Scenario)
	}

	finderCfg := spec.FinderConfig()
	finderCfg.Log = log
	s.Pathing = system.NewPathingSystems(system.PathingConfig{
		Cache:  catalog,
		Runner: runner,
		Finder: finderCfg,
		Log:    log,
	})
	s.World.AddSystem(s.Pathing)
	s.World.AddSystem(system.NewPathFollowSystem(spec.TickSeconds))

	if err := levels.Spawn(s.World, lvl, spec.Agent); err != nil {
		return nil, fmt.Errorf("sim: spawn level %s: %w", lvl.Name, err)
	}

	if opts.Watch {
		if err := s.watch(); err != nil {
			log.Warn("sim: hot reload disabled", "err", err)
		}
	}

	log.Info("sim: ready", "level", lvl.Name, "obstacles", len(lvl.Obstacles), "agents", len(lvl.Agents))
	return s, nil
}

// Step applies pending file changes and runs one frame.
func (s *Simulation) Step() {
	s.drainChanges()
	s.World.Update()
	s.frames++
}

// Frames is the number of frames stepped so far.
func (s *Simulation) Frames() int64 {
	return s.frames
}

// Wait blocks until background pathing work has finished.
func (s *Simulation) Wait() {
	if s.pool != nil {
		s.pool.Wait()
	}
}

func (s *Simulation) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.Wait()
	return err
}

func (s *Simulation) drainChanges() {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-s.watcher.Events:
			if !ok {
				s.watcher = nil
				return
			}
			s.HandleChange(path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				s.watcher = nil
				return
			}
			s.log.Warn("sim: watcher error", "err", err)
		default:
			return
		}
	}
}

// HandleChange reloads whatever the changed file feeds.
func (s *Simulation) HandleChange(path string) {
	switch prefabs.Classify(path) {
	case prefabs.KindObjects:
		if err := s.Catalog.Reload(); err != nil {
			s.log.Error("sim: reload objects", "err", err)
			return
		}
		if fs := s.Pathing.FinderScheduler(); fs != nil {
			fs.Invalidate()
		}
		s.log.Info("sim: objects reloaded", "types", len(s.Catalog.Types()))
	case prefabs.KindScript:
		if s.Scenario == nil {
			return
		}
		if err := s.Scenario.Reload(); err != nil {
			s.log.Error("sim: reload script", "err", err)
			return
		}
		s.log.Info("sim: script reloaded", "path", path)
	case prefabs.KindLevel:
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if name != s.Level.Name {
			return
		}
		lvl, err := levels.Load(name)
		if err != nil {
			s.log.Error("sim: reload level", "err", err)
			return
		}
		touched, err := levels.SyncObstacles(s.World, lvl)
		if err != nil {
			s.log.Error("sim: sync obstacles", "err", err)
			return
		}
		s.Level = lvl
		s.log.Info("sim: level reloaded", "level", name, "touched", touched)
	case prefabs.KindPathing:
		s.log.Warn("sim: pathing.yaml changes apply on restart", "path", path)
	}
}

// AgentState is a snapshot of one agent for reports and drawing.
type AgentState struct {
	Name     string
	Entity   ecs.Entity
	Position component.Transform
	Target   *pathing.PathTarget
	Path     *pathing.Path
}

// Agents returns the state of every agent, sorted by name.
func (s *Simulation) Agents() []AgentState {
	var out []AgentState
	for _, name := range system.Agents(s.World) {
		e, _ := system.FindLabeled(s.World, name)
		st := AgentState{Name: name, Entity: e}
		if t, ok := ecs.Get(s.World, e, component.TransformComponent.Kind()); ok {
			st.Position = *t
		}
		if t, ok := ecs.Get(s.World, e, component.PathTargetComponent.Kind()); ok {
			target := t.PathTarget
			st.Target = &target
		}
		if p, ok := ecs.Get(s.World, e, component.PathComponent.Kind()); ok {
			path := p.Path
			st.Path = &path
		}
		out = append(out, st)
	}
	return out
}

var errNoDirs = errors.New("sim: no directories to watch")

func (s *Simulation) watch() error {
	var dirs []string
	for _, d := range []string{prefabs.Dir, filepath.Join(prefabs.Dir, "scripts"), levels.Dir} {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	if len(dirs) == 0 {
		return errNoDirs
	}
	w, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		return err
	}
	s.watcher = w
	s.log.Debug("sim: watching", "dirs", dirs)
	return nil
}
