package job

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/message"
)

// Manager owns the jobs of one process, keyed by id. Jobs are fully
// independent: each carries its own progress, artifacts, and lock, so
// distinct jobs index, edit, and search concurrently without shared state.
type Manager struct {
	runner *Runner
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates an empty manager around a pipeline runner.
func NewManager(runner *Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{runner: runner, logger: logger, jobs: make(map[string]*Job)}
}

// Start registers a new job and launches its pipeline in the background,
// returning the job id immediately. The worker outlives the caller's
// context.
func (m *Manager) Start(ctx context.Context, src message.Source) string {
	j := newJob(uuid.NewString())

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", j.ID)
	go m.runner.Run(context.WithoutCancel(ctx), j, src)
	return j.ID
}

// Get returns a job by id.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, sifterr.Newf(sifterr.ErrCodeUnknownJob, "no job with id %s", id).
			WithDetail("job_id", id)
	}
	return j, nil
}

// Status returns a job's progress snapshot without blocking on its worker.
func (m *Manager) Status(id string) (Snapshot, error) {
	j, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.Progress.Snapshot(), nil
}

// IDs lists all known job ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		out = append(out, id)
	}
	return out
}
