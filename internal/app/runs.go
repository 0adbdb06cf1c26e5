package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/logger"
)

// maxRetainedRuns bounds finished runs kept in memory when history is
// unavailable.
const maxRetainedRuns = 50

// Runs executes playlist runs in the background for serve mode.
type Runs struct {
	syncer *Syncer
	Logger *logger.Logger

	mu   sync.Mutex
	live map[string]*liveRun
	wg   sync.WaitGroup
}

type liveRun struct {
	run    *Run
	cancel context.CancelFunc
	done   chan struct{}
	final  *domain.RunSummary
}

func NewRuns(syncer *Syncer, log *logger.Logger) *Runs {
	if log == nil {
		log = logger.Default()
	}
	return &Runs{
		syncer: syncer,
		Logger: log.WithComponent("runs"),
		live:   make(map[string]*liveRun),
	}
}

// Start resolves input and claims its folder synchronously, then runs the
// downloads in the background. It returns the initial summary.
func (m *Runs) Start(ctx context.Context, input string) (*domain.RunSummary, error) {
	run, err := m.syncer.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lr := &liveRun{run: run, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.live[run.ID] = lr
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(lr.done)
		defer cancel()

		final := run.Execute(runCtx, nil)
		recorded := run.Recorded()

		m.mu.Lock()
		lr.final = final
		if recorded {
			delete(m.live, run.ID)
		} else {
			m.pruneFinished()
		}
		m.mu.Unlock()
	}()

	m.Logger.Info("Run started", "run_id", run.ID, "folder", run.Resolved.Folder, "tracks", len(run.Resolved.Tracks))
	sum := run.Summary()
	return &sum, nil
}

// pruneFinished keeps at most maxRetainedRuns finished runs that history
// does not hold, dropping the oldest. m.mu must be held.
func (m *Runs) pruneFinished() {
	var finished []*liveRun
	for _, lr := range m.live {
		if lr.final != nil {
			finished = append(finished, lr)
		}
	}
	if len(finished) <= maxRetainedRuns {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].final.StartedAt.Before(finished[j].final.StartedAt)
	})
	for _, lr := range finished[:len(finished)-maxRetainedRuns] {
		delete(m.live, lr.run.ID)
	}
}

// Get returns a live snapshot or the recorded result of a finished run.
func (m *Runs) Get(id string) (*domain.RunSummary, error) {
	m.mu.Lock()
	lr, ok := m.live[id]
	var final *domain.RunSummary
	if ok {
		final = lr.final
	}
	m.mu.Unlock()

	if ok {
		if final != nil {
			return final, nil
		}
		sum := lr.run.Summary()
		return &sum, nil
	}

	if h := m.syncer.History(); h != nil {
		return h.GetRun(id)
	}
	return nil, domain.ErrRunNotFound
}

// Cancel stops a running run. Cancelling a finished run is a no-op.
func (m *Runs) Cancel(id string) error {
	m.mu.Lock()
	lr, ok := m.live[id]
	m.mu.Unlock()

	if !ok {
		if _, err := m.Get(id); err != nil {
			return err
		}
		return nil
	}

	lr.cancel()
	m.Logger.Info("Run cancel requested", "run_id", id)
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (m *Runs) Wait(ctx context.Context, id string) (*domain.RunSummary, error) {
	m.mu.Lock()
	lr, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return m.Get(id)
	}

	select {
	case <-lr.done:
		return m.Get(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns runs started by this process followed by older recorded runs,
// newest first.
func (m *Runs) List(limit int) ([]*domain.RunSummary, error) {
	m.mu.Lock()
	seen := make(map[string]bool, len(m.live))
	var out []*domain.RunSummary
	for id, lr := range m.live {
		seen[id] = true
		if lr.final != nil {
			out = append(out, lr.final)
			continue
		}
		sum := lr.run.Summary()
		out = append(out, &sum)
	}
	m.mu.Unlock()

	if h := m.syncer.History(); h != nil {
		recorded, err := h.ListRuns(limit)
		if err != nil && !errors.Is(err, domain.ErrRunNotFound) {
			return nil, err
		}
		for _, r := range recorded {
			if !seen[r.ID] {
				out = append(out, r)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Shutdown cancels every running run and waits for them to finish.
func (m *Runs) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, lr := range m.live {
		lr.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
