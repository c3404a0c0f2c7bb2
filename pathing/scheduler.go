package pathing

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/tasks"
	"golang.org/x/time/rate"
)

// FinderConfig configures a FinderScheduler.
type FinderConfig struct {
	// Offset is the clearance added around obstacle footprints.
	Offset float64
	// RetryInterval is the minimum time between a failed build and the next
	// attempt. Zero retries on the next tick.
	RetryInterval time.Duration
	Log           logging.Logger
	// Now overrides the clock used by the retry limiter.
	Now func() time.Time
}

// FinderScheduler keeps the published PathFinder up to date with the
// obstacles. At most one build is in flight; invalidations that arrive while
// building are folded into a single follow-up build.
type FinderScheduler struct {
	cfg     FinderConfig
	log     logging.Logger
	invalid bool
	failed  bool
	task    *tasks.Task[*PathFinder]
	current atomic.Pointer[PathFinder]
	retry   *rate.Limiter
}

// NewFinderScheduler starts with an obstacle free finder for bounds and in
// the invalid state, so the first tick builds the real mesh.
func NewFinderScheduler(bounds MapBounds, cfg FinderConfig) *FinderScheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Limit(0)
	if cfg.RetryInterval > 0 {
		limit = rate.Every(cfg.RetryInterval)
	}
	s := &FinderScheduler{
		cfg:     cfg,
		log:     logging.OrNoOp(cfg.Log),
		invalid: true,
		retry:   rate.NewLimiter(limit, 1),
	}
	s.current.Store(NewPathFinder(bounds))
	return s
}

// Current returns the published finder. It may be called from any goroutine.
func (s *FinderScheduler) Current() *PathFinder {
	return s.current.Load()
}

// Invalidate marks the finder stale.
func (s *FinderScheduler) Invalidate() {
	s.invalid = true
}

// Invalid reports whether a rebuild is pending.
func (s *FinderScheduler) Invalid() bool {
	return s.invalid
}

// Building reports whether a build is in flight.
func (s *FinderScheduler) Building() bool {
	return s.task != nil
}

// ShouldUpdate reports whether a build should be spawned now.
func (s *FinderScheduler) ShouldUpdate() bool {
	if !s.invalid || s.task != nil {
		return false
	}
	if !s.failed || s.cfg.RetryInterval <= 0 {
		return true
	}
	return s.retry.TokensAt(s.cfg.Now()) >= 1
}

// SpawnUpdate starts a build from an obstacle snapshot. The scheduler takes
// ownership of obstacles.
func (s *FinderScheduler) SpawnUpdate(runner tasks.Runner, cache ObjectCache, bounds MapBounds, obstacles []ObstacleSnapshot) {
	s.invalid = false
	if s.failed {
		s.retry.AllowN(s.cfg.Now(), 1)
	}
	offset, log := s.cfg.Offset, s.log
	s.log.Debug("pathing: spawning finder build", "obstacles", len(obstacles))
	s.task = tasks.Spawn(runner, func() (*PathFinder, error) {
		return CreateFinder(cache, bounds, obstacles, offset, log)
	})
}

// CheckResult polls the in-flight build. When it finished successfully the
// new finder is published and returned. A failed build is logged and leaves
// the scheduler invalid so it is retried.
func (s *FinderScheduler) CheckResult() (*PathFinder, bool) {
	res, done := s.task.Poll()
	if !done {
		return nil, false
	}
	s.task = nil
	if res.Err != nil {
		s.log.Error("pathing: finder build failed", "err", res.Err)
		s.invalid = true
		s.failed = true
		s.retry.AllowN(s.cfg.Now(), 1)
		return nil, false
	}
	s.failed = false
	s.current.Store(res.Value)
	s.log.Info("pathing: finder updated", "id", res.Value.ID(), "triangles", res.Value.Mesh().Len())
	return res.Value, true
}

// PathResult is a finished path search for one agent.
type PathResult struct {
	Agent uint64
	Path  Path
	Found bool
	Err   error
}

type pathOutcome struct {
	path  Path
	found bool
}

// PathScheduler tracks at most one path search per agent.
type PathScheduler struct {
	inFlight map[uint64]*tasks.Task[pathOutcome]
}

func NewPathScheduler() *PathScheduler {
	return &PathScheduler{inFlight: make(map[uint64]*tasks.Task[pathOutcome])}
}

// SpawnNew starts a search for agent. A search already running for the agent
// is superseded and its result is dropped.
func (s *PathScheduler) SpawnNew(runner tasks.Runner, finder *PathFinder, agent uint64, source cp.Vector, target PathTarget) {
	s.inFlight[agent] = tasks.Spawn(runner, func() (pathOutcome, error) {
		path, ok := finder.FindPath(source, target)
		return pathOutcome{path: path, found: ok}, nil
	})
}

// InFlight reports whether agent has a search running.
func (s *PathScheduler) InFlight(agent uint64) bool {
	_, ok := s.inFlight[agent]
	return ok
}

// Len returns the number of searches in flight.
func (s *PathScheduler) Len() int {
	return len(s.inFlight)
}

// CheckResults returns the searches that finished since the last call,
// ordered by agent.
func (s *PathScheduler) CheckResults() []PathResult {
	var out []PathResult
	for agent, task := range s.inFlight {
		res, done := task.Poll()
		if !done {
			continue
		}
		delete(s.inFlight, agent)
		out = append(out, PathResult{Agent: agent, Path: res.Value.path, Found: res.Value.found && res.Err == nil, Err: res.Err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// NeedsRequeue decides whether an agent heading for target has to search
// again after the finder changed. Agents without a path that are already
// close to the target are left alone.
func NeedsRequeue(position cp.Vector, target PathTarget, hasPath bool) bool {
	if hasPath {
		return true
	}
	return position.Distance(target.Location) > target.Props.Distance+TargetTolerance
}

// RequeueTarget is the target used for a retry after a finder update. The
// agent already committed to the destination, so the effort is unbounded.
func RequeueTarget(target PathTarget) PathTarget {
	return target.Unbounded()
}
