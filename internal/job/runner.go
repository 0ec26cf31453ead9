package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/sarsift/sarsift/internal/cluster"
	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/postings"
)

// Persister writes a job's artifacts to durable storage. A persistence
// failure is fatal to the job.
type Persister interface {
	SaveJob(ctx context.Context, jobID string, snap Snapshot) error
	SaveArtifacts(ctx context.Context, jobID string, a *Artifacts) error
}

// RunnerConfig tunes the pipeline worker.
type RunnerConfig struct {
	// DataDir is locked for the duration of a run so two processes cannot
	// index the same artifacts concurrently. Empty means no locking.
	DataDir string
	// Workers bounds the parallel normalization fan-out.
	Workers int
}

// Runner executes the indexing pipeline for one job: collect, normalize,
// extract, cluster, build postings, persist.
type Runner struct {
	cfg        RunnerConfig
	normalizer *message.Normalizer
	extractor  *extract.Extractor
	engine     *cluster.Engine
	persister  Persister
	logger     *slog.Logger
}

// NewRunner wires the pipeline stages. persister may be nil for purely
// in-memory jobs.
func NewRunner(cfg RunnerConfig, n *message.Normalizer, x *extract.Extractor, e *cluster.Engine, p Persister, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, normalizer: n, extractor: x, engine: e, persister: p, logger: logger}
}

// Run drives one job to a terminal state. Per-message failures are counted
// as skipped and never fail the job; persistence failures do.
func (r *Runner) Run(ctx context.Context, j *Job, src message.Source) {
	log := r.logger.With("job_id", j.ID)
	j.Progress.Start()

	if r.cfg.DataDir != "" {
		unlock, err := r.lockDataDir()
		if err != nil {
			log.Error("data dir is locked by another indexer", "error", err)
			r.fail(ctx, j, err)
			return
		}
		defer unlock()
	}

	parts, err := r.collect(ctx, j, src, log)
	if err != nil {
		r.fail(ctx, j, err)
		return
	}

	j.Progress.SetStage(StageExtracting)
	var occs []extract.Occurrence
	for i := range parts {
		occs = append(occs, r.extractor.Extract(ctx, &parts[i])...)
	}

	j.Progress.SetStage(StageClustering)
	idents := make([]string, len(occs))
	for i, o := range occs {
		idents[i] = o.Identifier
	}
	res := r.engine.Cluster(idents)
	if res.Skipped > 0 {
		log.Warn("identifiers without usable content dropped", "count", res.Skipped)
	}

	j.Progress.SetStage(StagePostings)
	occTable := extract.Group(occs)
	idx := postings.RebuildAll(res.State, occTable)

	j.setArtifacts(NewArtifacts(parts, occTable, res.State, idx))

	if r.persister != nil {
		j.Progress.SetStage(StagePersisting)
		if err := r.persistAll(ctx, j); err != nil {
			log.Error("artifact persistence failed", "error", err)
			r.fail(ctx, j, err)
			return
		}
	}

	j.Progress.SetDone()
	if r.persister != nil {
		if err := r.persister.SaveJob(ctx, j.ID, j.Progress.Snapshot()); err != nil {
			log.Warn("final status write failed", "error", err)
		}
	}
	snap := j.Progress.Snapshot()
	log.Info("indexing complete",
		"processed", snap.Processed, "skipped", snap.Skipped, "clusters", idx.Len())
}

// collect drains the source and normalizes every message, fanning the
// extraction-heavy normalization out over a bounded worker group. Output
// order is restored afterwards; malformed messages count as skipped.
func (r *Runner) collect(ctx context.Context, j *Job, src message.Source, log *slog.Logger) ([]message.Part, error) {
	j.Progress.SetStage(StageCollecting)

	var raws []*message.RawMessage
	parseSkips := 0
	for {
		raw, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sifterr.CodeOf(err) == sifterr.ErrCodeMessageParse {
				log.Warn("unparseable message skipped", "error", err)
				parseSkips++
				continue
			}
			return nil, err
		}
		raws = append(raws, raw)
	}
	j.Progress.SetTotal(len(raws) + parseSkips)
	for i := 0; i < parseSkips; i++ {
		j.Progress.IncrSkipped()
	}

	j.Progress.SetStage(StageNormalizing)
	slots := make([]*message.Part, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, raw := range raws {
		g.Go(func() error {
			part, err := r.normalizer.Normalize(gctx, raw)
			if err != nil {
				log.Warn("message failed normalization", "error", err)
				j.Progress.IncrSkipped()
				return nil
			}
			slots[i] = part
			j.Progress.IncrProcessed()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parts := make([]message.Part, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	return parts, nil
}

func (r *Runner) persistAll(ctx context.Context, j *Job) error {
	if err := r.persister.SaveJob(ctx, j.ID, j.Progress.Snapshot()); err != nil {
		return err
	}
	var saveErr error
	j.mu.RLock()
	a := j.artifacts
	j.mu.RUnlock()
	if a != nil {
		saveErr = r.persister.SaveArtifacts(ctx, j.ID, a)
	}
	return saveErr
}

func (r *Runner) fail(ctx context.Context, j *Job, err error) {
	j.Progress.SetError(err.Error())
	if r.persister != nil {
		if perr := r.persister.SaveJob(ctx, j.ID, j.Progress.Snapshot()); perr != nil {
			r.logger.Warn("error status write failed", "job_id", j.ID, "error", perr)
		}
	}
}

// lockDataDir takes the advisory file lock guarding the artifact
// directory. Returns the release func.
func (r *Runner) lockDataDir() (func(), error) {
	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodeSourceRead, err)
	}
	fl := flock.New(filepath.Join(r.cfg.DataDir, "index.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodeArtifactLocked, err)
	}
	if !ok {
		return nil, sifterr.Newf(sifterr.ErrCodeArtifactLocked,
			"another indexer holds the lock on %s", r.cfg.DataDir)
	}
	return func() { _ = fl.Unlock() }, nil
}
