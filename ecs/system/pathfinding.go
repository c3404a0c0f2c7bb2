package system

import (
	"sort"

	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/tasks"
)

const (
	// FinderUpdatedEvent is pushed in the frame a new PathFinder is
	// published. Data is a FinderUpdated.
	FinderUpdatedEvent = "pathing.finder_updated"
	// UpdateEntityPathEvent asks for a new path for one agent. Data is an
	// UpdateEntityPath.
	UpdateEntityPathEvent = "pathing.update_entity_path"
)

type FinderUpdated struct {
	Finder *pathing.PathFinder
}

type UpdateEntityPath struct {
	Entity ecs.Entity
	Target pathing.PathTarget
}

// RequestPath sets a new destination for agent. The search starts during the
// next frame.
func RequestPath(w *ecs.World, agent ecs.Entity, target pathing.PathTarget) {
	ecs.Emit(w, UpdateEntityPathEvent, UpdateEntityPath{Entity: agent, Target: target})
}

// PathingConfig wires the pathing systems to their collaborators.
type PathingConfig struct {
	Cache  pathing.ObjectCache
	Runner tasks.Runner
	Finder pathing.FinderConfig
	Log    logging.Logger
}

// PathingSystems keeps the navmesh in sync with static obstacles and agent
// paths in sync with the navmesh. Its phases run in a fixed order inside one
// frame: obstacle change detection, rebuild scheduling, rebuild result,
// invalidation of existing paths, new path requests, path results.
type PathingSystems struct {
	*ecs.Scheduler

	cfg    PathingConfig
	log    logging.Logger
	bounds pathing.MapBounds
	finder *pathing.FinderScheduler
	paths  *pathing.PathScheduler

	removedSeq uint64
	changedSeq uint64
}

func NewPathingSystems(cfg PathingConfig) *PathingSystems {
	if cfg.Runner == nil {
		cfg.Runner = tasks.InlineRunner{}
	}
	ps := &PathingSystems{
		cfg:   cfg,
		log:   logging.OrNoOp(cfg.Log),
		paths: pathing.NewPathScheduler(),
	}
	if ps.cfg.Finder.Log == nil {
		ps.cfg.Finder.Log = ps.log
	}
	ps.Scheduler = ecs.NewScheduler(
		ecs.SystemFunc(ps.checkRemoved),
		ecs.SystemFunc(ps.checkUpdated),
		ecs.SystemFunc(ps.updateFinder),
		ecs.SystemFunc(ps.checkUpdateResult),
		ecs.SystemFunc(ps.updateExistingPaths),
		ecs.SystemFunc(ps.updateRequestedPaths),
		ecs.SystemFunc(ps.checkPathResults),
	)
	return ps
}

// Update runs the phases once the world has map bounds.
func (ps *PathingSystems) Update(w *ecs.World) {
	if ps == nil || w == nil {
		return
	}
	if ps.finder == nil && !ps.setup(w) {
		return
	}
	ps.Scheduler.Update(w)
}

func (ps *PathingSystems) setup(w *ecs.World) bool {
	e, ok := ecs.First(w, component.MapBoundsComponent.Kind())
	if !ok {
		return false
	}
	bounds, _ := ecs.Get(w, e, component.MapBoundsComponent.Kind())
	if err := bounds.Validate(); err != nil {
		ps.log.Error("pathing: ignoring map bounds", "err", err)
		return false
	}
	ps.bounds = bounds.MapBounds
	ps.finder = pathing.NewFinderScheduler(ps.bounds, ps.cfg.Finder)
	ps.log.Info("pathing: initialised", "min", ps.bounds.Min, "max", ps.bounds.Max)
	return true
}

// Finder returns the published finder, nil before the map bounds are known.
func (ps *PathingSystems) Finder() *pathing.PathFinder {
	if ps.finder == nil {
		return nil
	}
	return ps.finder.Current()
}

// FinderScheduler exposes the rebuild state, nil before setup.
func (ps *PathingSystems) FinderScheduler() *pathing.FinderScheduler {
	return ps.finder
}

// PathScheduler exposes the in-flight path searches.
func (ps *PathingSystems) PathScheduler() *pathing.PathScheduler {
	return ps.paths
}

func (ps *PathingSystems) checkRemoved(w *ecs.World) {
	removed := ecs.RemovedSince(w, component.StaticSolidComponent.Kind(), ps.removedSeq)
	ps.removedSeq = w.Seq()
	if len(removed) > 0 {
		ps.log.Debug("pathing: static solids removed", "count", len(removed))
		ps.finder.Invalidate()
	}
}

func (ps *PathingSystems) checkUpdated(w *ecs.World) {
	changed := false
	ecs.ChangedSince(w, component.StaticSolidComponent.Kind(), ps.changedSeq, func(ecs.Entity, *component.StaticSolid) {
		changed = true
	})
	if !changed {
		ecs.ChangedSince(w, component.TransformComponent.Kind(), ps.changedSeq, func(e ecs.Entity, _ *component.Transform) {
			if ecs.Has(w, e, component.StaticSolidComponent.Kind()) {
				changed = true
			}
		})
	}
	ps.changedSeq = w.Seq()
	if changed {
		ps.finder.Invalidate()
	}
}

func (ps *PathingSystems) updateFinder(w *ecs.World) {
	if !ps.finder.ShouldUpdate() {
		return
	}
	var obstacles []pathing.ObstacleSnapshot
	ecs.ForEach2(w, component.StaticSolidComponent.Kind(), component.TransformComponent.Kind(), func(e ecs.Entity, solid *component.StaticSolid, t *component.Transform) {
		obstacles = append(obstacles, pathing.ObstacleSnapshot{
			Entity:   e.Key(),
			Position: t.Position(),
			Rotation: t.Rotation,
			Type:     solid.Type,
		})
	})
	sort.Slice(obstacles, func(i, j int) bool { return obstacles[i].Entity < obstacles[j].Entity })
	ps.finder.SpawnUpdate(ps.cfg.Runner, ps.cfg.Cache, ps.bounds, obstacles)
}

func (ps *PathingSystems) checkUpdateResult(w *ecs.World) {
	finder, ok := ps.finder.CheckResult()
	if !ok {
		return
	}
	ecs.Emit(w, FinderUpdatedEvent, FinderUpdated{Finder: finder})
}

// updateExistingPaths requeues agents once per batch of finder updates.
func (ps *PathingSystems) updateExistingPaths(w *ecs.World) {
	if w.Events().Count(FinderUpdatedEvent) == 0 {
		return
	}
	finder := ps.finder.Current()
	requeued := 0
	for _, e := range ecs.Query(w, component.PathTargetComponent.Kind()) {
		target, _ := ecs.Get(w, e, component.PathTargetComponent.Kind())
		t, ok := ecs.Get(w, e, component.TransformComponent.Kind())
		if !ok {
			continue
		}
		hasPath := ecs.Has(w, e, component.PathComponent.Kind())
		if !pathing.NeedsRequeue(t.Position(), target.PathTarget, hasPath) {
			continue
		}
		ps.paths.SpawnNew(ps.cfg.Runner, finder, e.Key(), t.Position(), pathing.RequeueTarget(target.PathTarget))
		requeued++
	}
	if requeued > 0 {
		ps.log.Debug("pathing: requeued agents after finder update", "count", requeued)
	}
}

func (ps *PathingSystems) updateRequestedPaths(w *ecs.World) {
	finder := ps.finder.Current()
	ecs.Read(w, UpdateEntityPathEvent, func(req UpdateEntityPath) {
		if !ecs.IsAlive(w, req.Entity) {
			return
		}
		t, ok := ecs.Get(w, req.Entity, component.TransformComponent.Kind())
		if !ok {
			ps.log.Warn("pathing: path requested for entity without transform", "entity", req.Entity)
			return
		}
		if err := ecs.Add(w, req.Entity, component.PathTargetComponent.Kind(), &component.PathTarget{PathTarget: req.Target}); err != nil {
			ps.log.Error("pathing: store path target", "entity", req.Entity, "err", err)
			return
		}
		ps.paths.SpawnNew(ps.cfg.Runner, finder, req.Entity.Key(), t.Position(), req.Target)
	})
}

func (ps *PathingSystems) checkPathResults(w *ecs.World) {
	for _, res := range ps.paths.CheckResults() {
		e := ecs.EntityFromKey(res.Agent)
		if !ecs.IsAlive(w, e) {
			continue
		}
		if res.Err != nil {
			ps.log.Error("pathing: path search failed", "entity", e, "err", res.Err)
		}
		if res.Found {
			if err := ecs.Add(w, e, component.PathComponent.Kind(), &component.Path{Path: res.Path}); err != nil {
				ps.log.Error("pathing: store path", "entity", e, "err", err)
			}
			continue
		}
		ecs.Remove(w, e, component.PathComponent.Kind())
		target, ok := ecs.Get(w, e, component.PathTargetComponent.Kind())
		if ok && !target.Permanent && !ps.paths.InFlight(res.Agent) {
			ecs.Remove(w, e, component.PathTargetComponent.Kind())
		}
	}
}
