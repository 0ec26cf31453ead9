package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sarsift/sarsift/internal/cluster"
	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/postings"
)

// SaveJob upserts a job's status row.
func (s *Store) SaveJob(ctx context.Context, jobID string, snap job.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, error, processed, total, skipped, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			processed = excluded.processed,
			total = excluded.total,
			skipped = excluded.skipped,
			updated_at = excluded.updated_at`,
		jobID, string(snap.Status), snap.Error,
		snap.Processed, snap.Total, snap.Skipped,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	return nil
}

// LoadJob reads a job's persisted status.
func (s *Store) LoadJob(ctx context.Context, jobID string) (job.Snapshot, error) {
	var snap job.Snapshot
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status, error, processed, total, skipped FROM jobs WHERE id = ?`,
		jobID).Scan(&status, &snap.Error, &snap.Processed, &snap.Total, &snap.Skipped)
	if err == sql.ErrNoRows {
		return snap, sifterr.Newf(sifterr.ErrCodeUnknownJob, "no persisted job %s", jobID)
	}
	if err != nil {
		return snap, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	snap.Status = job.Status(status)
	return snap, nil
}

// JobIDs lists persisted job ids, newest first.
func (s *Store) JobIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveArtifacts writes a job's complete artifact set in one transaction,
// replacing any prior rows for the job.
func (s *Store) SaveArtifacts(ctx context.Context, jobID string, a *job.Artifacts) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"parts", "occurrences", "clusters", "members", "postings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", jobID); err != nil {
			return sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
	}

	if err := insertParts(ctx, tx, jobID, a.Parts); err != nil {
		return err
	}
	if err := insertOccurrences(ctx, tx, jobID, a.Occurrences); err != nil {
		return err
	}
	if err := insertClusterState(ctx, tx, jobID, a.State, a.Index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	return nil
}

// SaveClusterState replaces the editable artifact tables (clusters,
// members, postings) for a job in one transaction. Parts and occurrences
// are left untouched; edits never alter message content.
func (s *Store) SaveClusterState(ctx context.Context, jobID string, st *cluster.State, idx *postings.Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"clusters", "members", "postings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", jobID); err != nil {
			return sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
	}
	if err := insertClusterState(ctx, tx, jobID, st, idx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	return nil
}

// LoadArtifacts reconstructs a job's artifacts from the database.
func (s *Store) LoadArtifacts(ctx context.Context, jobID string) (*job.Artifacts, error) {
	parts, err := s.loadParts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	occ, err := s.loadOccurrences(ctx, jobID)
	if err != nil {
		return nil, err
	}
	st, err := s.loadClusterState(ctx, jobID)
	if err != nil {
		return nil, err
	}
	idx, err := s.loadPostings(ctx, jobID)
	if err != nil {
		return nil, err
	}
	// A cluster with no postings rows still has an index entry in memory.
	// Seed one on load so a reloaded index resolves the same cluster ids.
	for id := range st.Clusters {
		if _, ok := idx.Get(id); !ok {
			idx.Set(id, &postings.Postings{})
		}
	}
	return job.NewArtifacts(parts, occ, st, idx), nil
}

func insertParts(ctx context.Context, tx *sql.Tx, jobID string, parts []message.Part) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO parts
			(job_id, id, from_header, to_header, cc_header, bcc_header,
			 date, has_date, subject, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer stmt.Close()

	for i := range parts {
		p := &parts[i]
		date := ""
		if p.HasDate {
			date = p.Date.UTC().Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx, jobID, p.ID, p.From,
			encodeHeader(p.To), encodeHeader(p.Cc), encodeHeader(p.Bcc),
			date, boolToInt(p.HasDate), p.Subject, p.Body)
		if err != nil {
			return sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
	}
	return nil
}

func insertOccurrences(ctx context.Context, tx *sql.Tx, jobID string, occ map[string][]extract.Occurrence) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO occurrences (job_id, identifier, role, part_id)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer stmt.Close()

	for _, occs := range occ {
		for _, o := range occs {
			if _, err := stmt.ExecContext(ctx, jobID, o.Identifier, string(o.Role), o.PartID); err != nil {
				return sifterr.Wrap(sifterr.ErrCodePersistence, err)
			}
		}
	}
	return nil
}

func insertClusterState(ctx context.Context, tx *sql.Tx, jobID string, st *cluster.State, idx *postings.Index) error {
	for id, c := range st.Clusters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (job_id, id, label) VALUES (?, ?, ?)`,
			jobID, id, c.Label); err != nil {
			return sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		for _, m := range c.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO members (job_id, identifier, cluster_id) VALUES (?, ?, ?)`,
				jobID, m, id); err != nil {
				return sifterr.Wrap(sifterr.ErrCodePersistence, err)
			}
		}
	}

	for _, cid := range idx.ClusterIDs() {
		p, _ := idx.Get(cid)
		for role, ids := range map[extract.Role][]string{
			extract.RoleFrom:        p.FromIDs,
			extract.RoleToLike:      p.ToIDs,
			extract.RoleBodyMention: p.BodyIDs,
		} {
			for _, pid := range ids {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO postings (job_id, cluster_id, role, part_id) VALUES (?, ?, ?, ?)`,
					jobID, cid, string(role), pid); err != nil {
					return sifterr.Wrap(sifterr.ErrCodePersistence, err)
				}
			}
		}
	}
	return nil
}

func (s *Store) loadParts(ctx context.Context, jobID string) ([]message.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_header, to_header, cc_header, bcc_header,
		       date, has_date, subject, body
		FROM parts WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer rows.Close()

	var parts []message.Part
	for rows.Next() {
		var p message.Part
		var to, cc, bcc, date string
		var hasDate int
		if err := rows.Scan(&p.ID, &p.From, &to, &cc, &bcc, &date, &hasDate, &p.Subject, &p.Body); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		p.To = decodeHeader(to)
		p.Cc = decodeHeader(cc)
		p.Bcc = decodeHeader(bcc)
		if hasDate == 1 {
			t, err := time.Parse(time.RFC3339, date)
			if err == nil {
				p.Date = t
				p.HasDate = true
			}
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (s *Store) loadOccurrences(ctx context.Context, jobID string) (map[string][]extract.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, role, part_id FROM occurrences WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer rows.Close()

	var occs []extract.Occurrence
	for rows.Next() {
		var o extract.Occurrence
		var role string
		if err := rows.Scan(&o.Identifier, &role, &o.PartID); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		o.Role = extract.Role(role)
		occs = append(occs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	return extract.Group(occs), nil
}

func (s *Store) loadClusterState(ctx context.Context, jobID string) (*cluster.State, error) {
	st := cluster.NewState()

	rows, err := s.db.QueryContext(ctx, `SELECT id, label FROM clusters WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c cluster.Cluster
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		st.Clusters[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}

	mrows, err := s.db.QueryContext(ctx, `
		SELECT identifier, cluster_id FROM members WHERE job_id = ? ORDER BY identifier`, jobID)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var ident, cid string
		if err := mrows.Scan(&ident, &cid); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		c, ok := st.Clusters[cid]
		if !ok {
			return nil, sifterr.Newf(sifterr.ErrCodeInternal,
				"member %q references missing cluster %s", ident, cid)
		}
		c.Members = append(c.Members, ident)
		st.ByIdentifier[ident] = cid
	}
	return st, mrows.Err()
}

func (s *Store) loadPostings(ctx context.Context, jobID string) (*postings.Index, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, role, part_id FROM postings
		WHERE job_id = ? ORDER BY cluster_id, role, part_id`, jobID)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
	}
	defer rows.Close()

	idx := postings.NewIndex()
	byCluster := make(map[string]*postings.Postings)
	for rows.Next() {
		var cid, role, pid string
		if err := rows.Scan(&cid, &role, &pid); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodePersistence, err)
		}
		p, ok := byCluster[cid]
		if !ok {
			p = &postings.Postings{}
			byCluster[cid] = p
			idx.Set(cid, p)
		}
		switch extract.Role(role) {
		case extract.RoleFrom:
			p.FromIDs = append(p.FromIDs, pid)
		case extract.RoleToLike:
			p.ToIDs = append(p.ToIDs, pid)
		case extract.RoleBodyMention:
			p.BodyIDs = append(p.BodyIDs, pid)
		}
	}
	return idx, rows.Err()
}

func encodeHeader(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeHeader(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
