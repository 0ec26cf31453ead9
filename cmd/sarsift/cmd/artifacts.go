package cmd

import (
	"context"

	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/store"
)

// loadDoneArtifacts loads a finished job's artifacts. Jobs that are still
// pending or running, or that ended in error, have no queryable artifacts
// and are rejected before the load.
func loadDoneArtifacts(ctx context.Context, st *store.Store, jobID string) (*job.Artifacts, error) {
	snap, err := st.LoadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if snap.Status != job.StatusDone {
		return nil, sifterr.Newf(sifterr.ErrCodeJobNotReady,
			"job %s is %s, not done", jobID, snap.Status).WithDetail("job_id", jobID)
	}
	return st.LoadArtifacts(ctx, jobID)
}
