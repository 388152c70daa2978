// Package pathfind fills the gaps between goal waypoints with a walkable
// route. Searches run asynchronously as cancellable jobs; at most one job is
// active per mover.
package pathfind

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/movement/internal/constrain"
	"github.com/OCAP2/movement/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status of a job.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	}
	return "pending"
}

// Result of a search. Path always starts with the first requested waypoint
// and may stop short of the last one; Unreachable lists the indices of the
// requested waypoints that could not be reached.
type Result struct {
	Path        []core.Waypoint
	Unreachable []int
}

// Partial reports whether some waypoints were not reached.
func (r Result) Partial() bool { return len(r.Unreachable) > 0 }

// Options of a single request.
type Options struct {
	constrain.Options
	// Delay defers the search. Requests resolvable without searching never wait.
	// Zero uses the service default; negative means no delay.
	Delay time.Duration
}

// Job is a pending or settled search.
type Job struct {
	mover  string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	finish func(*Job, Status)

	mu     sync.Mutex
	status Status
	result Result
}

func newJob(mover string, cancel context.CancelFunc) *Job {
	return &Job{mover: mover, cancel: cancel, done: make(chan struct{})}
}

func (j *Job) settle(status Status, res Result) bool {
	settled := false
	j.once.Do(func() {
		j.mu.Lock()
		j.status = status
		if status == StatusResolved {
			j.result = res
		}
		j.mu.Unlock()
		close(j.done)
		j.cancel()
		settled = true
		if j.finish != nil {
			j.finish(j, status)
		}
	})
	return settled
}

// Mover returns the id the job was requested for.
func (j *Job) Mover() string { return j.mover }

// Done is closed once the job resolves or is cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result returns the current status and, once resolved, the result.
func (j *Job) Result() (Result, Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.status
}

// Wait blocks until the job settles. It returns nil when the job was
// cancelled or ctx ended first.
func (j *Job) Wait(ctx context.Context) *Result {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil
	}
	res, status := j.Result()
	if status != StatusResolved {
		return nil
	}
	return &res
}

// Cancel settles a pending job to nil. It has no effect once resolved.
func (j *Job) Cancel() {
	j.settle(StatusCancelled, Result{})
}

// Config of the service.
type Config struct {
	Delay    time.Duration
	MaxNodes int
}

// Service schedules pathfinding jobs.
type Service struct {
	constrainer *constrain.Constrainer
	cfg         Config
	logger      *slog.Logger
	metrics     *metrics

	mu     sync.Mutex
	active map[string]*Job
}

// NewService returns a pathfinder that checks its paths with c. It fails
// only when the metric instruments cannot be created.
func NewService(c *constrain.Constrainer, cfg Config, logger *slog.Logger) (*Service, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		constrainer: c,
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		active:      make(map[string]*Job),
	}, nil
}

// FindPath starts a job for mover. A pending job for the same mover is
// cancelled. Invalid waypoints are reported immediately.
func (s *Service) FindPath(ctx context.Context, mover string, origin core.Waypoint, candidates []core.WaypointInput, opts Options) (*Job, error) {
	resolved, err := s.constrainer.Resolve(origin, candidates)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := newJob(mover, cancel)
	job.finish = s.finished

	s.mu.Lock()
	prev := s.active[mover]
	s.active[mover] = job
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	s.metrics.started.Add(ctx, 1)

	if len(resolved) == 0 {
		job.settle(StatusResolved, Result{})
		return job, nil
	}

	inputs := make([]core.WaypointInput, len(resolved))
	for i, w := range resolved {
		inputs[i] = core.InputFrom(w)
	}
	direct, constrained, err := s.constrainer.Constrain(origin, inputs, opts.Options)
	if err == nil && !constrained {
		s.logger.Debug("path resolved without search", "mover", mover, "waypoints", len(direct))
		job.settle(StatusResolved, Result{Path: direct})
		return job, nil
	}

	delay := opts.Delay
	if delay == 0 {
		delay = s.cfg.Delay
	}
	go s.run(jobCtx, job, resolved, opts.Options, delay)
	return job, nil
}

// Cancel cancels the pending job of mover, if any.
func (s *Service) Cancel(mover string) {
	s.mu.Lock()
	job := s.active[mover]
	s.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// Active returns the number of pending jobs.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Service) finished(j *Job, status Status) {
	s.mu.Lock()
	if s.active[j.mover] == j {
		delete(s.active, j.mover)
	}
	s.mu.Unlock()

	ctx := context.Background()
	switch status {
	case StatusCancelled:
		s.metrics.cancelled.Add(ctx, 1)
	case StatusResolved:
		res, _ := j.Result()
		s.metrics.resolved.Add(ctx, 1, metric.WithAttributes(attribute.Bool("partial", res.Partial())))
	}
}

func (s *Service) run(ctx context.Context, job *Job, goals []core.Waypoint, opts constrain.Options, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			job.settle(StatusCancelled, Result{})
			return
		case <-timer.C:
		}
	}

	res, ok := s.search(ctx, goals, opts)
	if !ok {
		job.settle(StatusCancelled, Result{})
		return
	}
	if job.settle(StatusResolved, res) {
		s.logger.Debug("path resolved",
			"mover", job.mover,
			"waypoints", len(res.Path),
			"unreachable", len(res.Unreachable))
	}
}

// search walks the goals in order. Each goal is reached directly when
// possible and by A* otherwise; unreachable goals are skipped and recorded.
// ok is false when ctx ended during the search.
func (s *Service) search(ctx context.Context, goals []core.Waypoint, opts constrain.Options) (Result, bool) {
	g := s.constrainer.Grid()
	sr := &searcher{grid: g, c: s.constrainer, opts: opts, maxNodes: s.cfg.MaxNodes}
	defer func() {
		s.metrics.nodes.Record(context.Background(), int64(sr.expanded))
	}()

	res := Result{Path: []core.Waypoint{goals[0]}}
	cur := goals[0]
	for k := 1; k < len(goals); k++ {
		if ctx.Err() != nil {
			return Result{}, false
		}
		goal := goals[k]
		if _, ok := s.constrainer.Step(cur, goal, opts); ok {
			res.Path = append(res.Path, goal)
			cur = goal
			continue
		}
		if g.IsGridless() {
			res.Unreachable = append(res.Unreachable, k)
			continue
		}

		start, end := g.Reference(cur), g.Reference(goal)
		cells, found := sr.search(ctx, goal, start, end)
		if ctx.Err() != nil {
			return Result{}, false
		}
		if !found {
			res.Unreachable = append(res.Unreachable, k)
			continue
		}
		if _, ok := s.constrainer.Step(sr.at(goal, end), goal, opts); !ok {
			// the goal sits off-grid and the final nudge onto it is blocked
			res.Unreachable = append(res.Unreachable, k)
			continue
		}
		cells = turningPoints(g, cells)
		for i := 1; i < len(cells)-1; i++ {
			res.Path = append(res.Path, sr.at(goal, cells[i]))
		}
		res.Path = append(res.Path, goal)
		cur = goal
	}
	return res, true
}
