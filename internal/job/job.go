package job

import (
	"sync"

	sifterr "github.com/sarsift/sarsift/internal/errors"
)

// Job is one indexing run and its artifacts. The embedded RWMutex
// serializes cluster edits against searches: a writer recomputes postings
// and swaps state before any reader can observe it, so readers always see
// pre-edit or post-edit state in its entirety.
type Job struct {
	ID       string
	Progress *Progress

	mu        sync.RWMutex
	artifacts *Artifacts
}

func newJob(id string) *Job {
	return &Job{ID: id, Progress: NewProgress()}
}

// setArtifacts installs the pipeline output. Called once by the worker
// before the job transitions to done.
func (j *Job) setArtifacts(a *Artifacts) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifacts = a
}

// Read runs fn with shared access to the artifacts. Fails with a not-ready
// error unless the job is done.
func (j *Job) Read(fn func(*Artifacts) error) error {
	if st := j.Progress.Status(); st != StatusDone {
		return notReady(j.ID, st)
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return fn(j.artifacts)
}

// Update runs fn with exclusive access to the artifacts. fn may replace
// State and Index; parts are immutable and must not be touched.
func (j *Job) Update(fn func(*Artifacts) error) error {
	if st := j.Progress.Status(); st != StatusDone {
		return notReady(j.ID, st)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return fn(j.artifacts)
}

func notReady(id string, st Status) error {
	return sifterr.Newf(sifterr.ErrCodeJobNotReady,
		"job %s is %s, artifacts are not queryable", id, st).
		WithDetail("job_id", id)
}
