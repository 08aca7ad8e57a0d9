package system

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/systems"
)

// Observer is notified after every system update.
type Observer interface {
	ObserveSystem(name string, phase systems.Phase, took time.Duration, err error)
}

// Runner executes systems in phase order each tick.
type Runner struct {
	mu      sync.Mutex
	systems []systems.System
	sorted  bool
	metrics map[string]*systems.Metrics

	observer Observer
	logger   log.Log
}

func NewRunner(logger log.Log) *Runner {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Runner{
		systems: make([]systems.System, 0, 16),
		metrics: make(map[string]*systems.Metrics),
		logger:  logger.Named("runner"),
	}
}

// SetObserver installs an update observer. Call before ticking starts.
func (r *Runner) SetObserver(o Observer) { r.observer = o }

// Register adds s. Names must be unique.
func (r *Runner) Register(s systems.System) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[s.Name()]; ok {
		return errors.Errorf("system %q already registered", s.Name())
	}
	r.systems = append(r.systems, s)
	r.metrics[s.Name()] = &systems.Metrics{}
	r.sorted = false
	return nil
}

// Tick runs every tick phase in order. A failing system does not keep later
// systems or phases from running; their errors are joined. Only a done
// context ends the tick early.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) error {
	var errs error
	for _, phase := range systems.TickPhases {
		if err := ctx.Err(); err != nil {
			if !errors.Is(errs, err) {
				errs = multierr.Append(errs, err)
			}
			return errs
		}
		errs = multierr.Append(errs, r.TickPhase(ctx, phase, dt))
	}
	return errs
}

// TickPhase runs only the systems of phase.
func (r *Runner) TickPhase(ctx context.Context, phase systems.Phase, dt time.Duration) error {
	var errs error
	for _, s := range r.snapshot() {
		if s.Phase() != phase {
			continue
		}
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := r.run(ctx, s, dt); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "%s system %q", phase, s.Name()))
		}
	}
	return errs
}

// Metrics returns a copy of the metrics of system name.
func (r *Runner) Metrics(name string) (systems.Metrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok {
		return systems.Metrics{}, false
	}
	return *m, true
}

// ExecutionOrder lists system names in the order a tick runs them.
func (r *Runner) ExecutionOrder() []string {
	list := r.snapshot()
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name()
	}
	return out
}

func (r *Runner) run(ctx context.Context, s systems.System, dt time.Duration) error {
	start := time.Now()
	err := s.Update(ctx, dt)
	took := time.Since(start)

	r.mu.Lock()
	m := r.metrics[s.Name()]
	m.ExecutionCount++
	m.TotalExecutionTime += took
	m.LastExecutionTime = took
	m.LastExecutedAt = start
	if took > m.MaxExecutionTime {
		m.MaxExecutionTime = took
	}
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("system update failed",
			log.String("system", s.Name()),
			log.Stringer("phase", s.Phase()),
			log.Error(err),
		)
	}
	if r.observer != nil {
		r.observer.ObserveSystem(s.Name(), s.Phase(), took, err)
	}
	return err
}

func (r *Runner) snapshot() []systems.System {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
	out := make([]systems.System, len(r.systems))
	copy(out, r.systems)
	return out
}
