// Package job drives the indexing pipeline as a background state machine:
// one worker per job runs normalize, extract, cluster, and postings build,
// while status reads return consistent snapshots without ever blocking on
// the worker.
package job

import (
	"sync"
	"time"
)

// Status is the job lifecycle state.
type Status string

const (
	// StatusPending means the job is created but the worker has not started.
	StatusPending Status = "pending"
	// StatusRunning means the pipeline is executing.
	StatusRunning Status = "running"
	// StatusDone means all artifacts are built and queryable.
	StatusDone Status = "done"
	// StatusError means the pipeline hit a fatal failure.
	StatusError Status = "error"
)

// Stage is the pipeline phase currently executing.
type Stage string

const (
	// StageCollecting reads messages from the source.
	StageCollecting Stage = "collecting"
	// StageNormalizing turns raw messages into parts.
	StageNormalizing Stage = "normalizing"
	// StageExtracting derives identifier occurrences.
	StageExtracting Stage = "extracting"
	// StageClustering groups identifiers into identity clusters.
	StageClustering Stage = "clustering"
	// StagePostings builds the inverted index.
	StagePostings Stage = "postings"
	// StagePersisting writes artifacts to the store.
	StagePersisting Stage = "persisting"
)

// Snapshot is an immutable copy of a job's progress.
type Snapshot struct {
	Status         Status  `json:"status"`
	Stage          Stage   `json:"stage,omitempty"`
	Processed      int     `json:"processed"`
	Total          int     `json:"total"`
	Skipped        int     `json:"skipped"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	Error          string  `json:"error,omitempty"`
}

// Progress tracks one job's counters behind an RWMutex. Writers are the
// pipeline worker only; readers take snapshots.
type Progress struct {
	mu sync.RWMutex

	status    Status
	stage     Stage
	processed int
	total     int
	skipped   int
	startTime time.Time
	errMsg    string
}

// NewProgress returns a tracker in the pending state.
func NewProgress() *Progress {
	return &Progress{status: StatusPending, startTime: time.Now()}
}

// Start transitions pending to running.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusRunning
	p.startTime = time.Now()
}

// SetStage records the pipeline phase.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// SetTotal records the number of messages the job will consume.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
}

// IncrProcessed counts one successfully normalized message.
func (p *Progress) IncrProcessed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
}

// IncrSkipped counts one message dropped by a recoverable failure.
func (p *Progress) IncrSkipped() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
}

// SetDone marks the job complete.
func (p *Progress) SetDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusDone
	p.stage = ""
}

// SetError marks the job failed with a message.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errMsg = message
}

// Status returns the current lifecycle state.
func (p *Progress) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status
}

// Snapshot returns an immutable copy of the current progress.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.processed+p.skipped) / float64(p.total) * 100.0
	}

	return Snapshot{
		Status:         p.status,
		Stage:          p.stage,
		Processed:      p.processed,
		Total:          p.total,
		Skipped:        p.skipped,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		Error:          p.errMsg,
	}
}
