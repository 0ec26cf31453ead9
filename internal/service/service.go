// Package service is the operation surface over jobs and their artifacts:
// start/status, cluster listing and editing, and search. It owns no
// business rules of its own; it sequences the cluster, postings, and search
// packages under each job's lock and persists committed edits.
package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/sarsift/sarsift/internal/cluster"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/search"
	"github.com/sarsift/sarsift/internal/store"
)

// Pinger reports whether the text-extraction collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service exposes the sifter operations.
type Service struct {
	manager   *job.Manager
	store     *store.Store
	extractor Pinger
	logger    *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithStore enables artifact persistence.
func WithStore(s *store.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithExtractorPing wires the extractor reachability probe for Health.
func WithExtractorPing(p Pinger) Option {
	return func(svc *Service) { svc.extractor = p }
}

// New creates the service around a job manager.
func New(manager *job.Manager, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{manager: manager, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// StartIndex launches a new indexing job over the source and returns its id.
func (s *Service) StartIndex(ctx context.Context, src message.Source) string {
	return s.manager.Start(ctx, src)
}

// JobStatus returns a job's progress snapshot.
func (s *Service) JobStatus(jobID string) (job.Snapshot, error) {
	return s.manager.Status(jobID)
}

// ClusterView is one cluster in a listing.
type ClusterView struct {
	ClusterID string   `json:"cluster_id"`
	Label     string   `json:"label"`
	Size      int      `json:"size"`
	Members   []string `json:"members,omitempty"`
}

// Clusters lists a job's clusters, largest first, ties by label.
func (s *Service) Clusters(jobID string, includeMembers bool) ([]ClusterView, error) {
	j, err := s.manager.Get(jobID)
	if err != nil {
		return nil, err
	}

	var out []ClusterView
	err = j.Read(func(a *job.Artifacts) error {
		out = make([]ClusterView, 0, len(a.State.Clusters))
		for _, c := range a.State.Clusters {
			v := ClusterView{ClusterID: c.ID, Label: c.Label, Size: len(c.Members)}
			if includeMembers {
				v.Members = append([]string(nil), c.Members...)
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// IdentifierRow is one identifier with its cluster assignment. IsGold marks
// the identifier whose normalized form matches the cluster's label.
type IdentifierRow struct {
	Identifier string `json:"identifier"`
	ClusterID  string `json:"cluster_id"`
	IsGold     bool   `json:"is_gold"`
}

// IdentifierListing pairs the identifier rows with cluster metadata.
type IdentifierListing struct {
	Identifiers []IdentifierRow `json:"identifiers"`
	Clusters    []ClusterView   `json:"clusters"`
}

// Identifiers lists every clustered identifier for a job.
func (s *Service) Identifiers(jobID string) (*IdentifierListing, error) {
	clusters, err := s.Clusters(jobID, false)
	if err != nil {
		return nil, err
	}

	j, err := s.manager.Get(jobID)
	if err != nil {
		return nil, err
	}

	listing := &IdentifierListing{Clusters: clusters}
	err = j.Read(func(a *job.Artifacts) error {
		rows := make([]IdentifierRow, 0, len(a.State.ByIdentifier))
		for ident, cid := range a.State.ByIdentifier {
			c := a.State.Clusters[cid]
			rows = append(rows, IdentifierRow{
				Identifier: ident,
				ClusterID:  cid,
				IsGold:     c != nil && cluster.Normalize(ident) == cluster.Normalize(c.Label),
			})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].ClusterID != rows[j].ClusterID {
				return rows[i].ClusterID < rows[j].ClusterID
			}
			return rows[i].Identifier < rows[j].Identifier
		})
		listing.Identifiers = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// EditOutcome reports a committed edit batch.
type EditOutcome struct {
	Touched  []string `json:"touched"`
	Removed  []string `json:"removed"`
	Clusters int      `json:"clusters"`
}

// ApplyEdit applies an edit batch to a job's clusters as one transaction:
// validate, apply, recompute postings for touched clusters, persist, then
// swap the new state in. A failure at any step leaves the served state
// unchanged. Searches block for the duration, never observing membership
// without matching postings.
func (s *Service) ApplyEdit(ctx context.Context, jobID string, batch cluster.EditBatch) (*EditOutcome, error) {
	j, err := s.manager.Get(jobID)
	if err != nil {
		return nil, err
	}

	var outcome *EditOutcome
	err = j.Update(func(a *job.Artifacts) error {
		if batch.Empty() {
			outcome = &EditOutcome{Clusters: len(a.State.Clusters)}
			return nil
		}

		res, err := cluster.Apply(a.State, batch)
		if err != nil {
			return err
		}

		idx := a.Index.Clone()
		idx.Recompute(res.State, a.Occurrences, res.Touched, res.Removed)

		if s.store != nil {
			if err := s.store.SaveClusterState(ctx, jobID, res.State, idx); err != nil {
				return err
			}
		}

		a.State = res.State
		a.Index = idx
		outcome = &EditOutcome{
			Touched:  res.Touched,
			Removed:  res.Removed,
			Clusters: len(res.State.Clusters),
		}
		s.logger.Info("edit batch committed", "job_id", jobID,
			"touched", len(res.Touched), "removed", len(res.Removed))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// PartView is one part in a search or cluster-detail result.
type PartView struct {
	PartID  string   `json:"part_id"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Date    string   `json:"date,omitempty"`
	Body    string   `json:"body"`
}

// Search evaluates the rules against a finished job, oldest match first.
func (s *Service) Search(jobID string, rules []search.Rule) ([]PartView, error) {
	j, err := s.manager.Get(jobID)
	if err != nil {
		return nil, err
	}

	var out []PartView
	err = j.Read(func(a *job.Artifacts) error {
		eval := search.NewEvaluator(a.Index, a.Parts, s.logger)
		out = toViews(eval.Evaluate(rules))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClusterParts returns every part a cluster touches in any role, in date
// order.
func (s *Service) ClusterParts(jobID, clusterID string) ([]PartView, error) {
	j, err := s.manager.Get(jobID)
	if err != nil {
		return nil, err
	}

	var out []PartView
	err = j.Read(func(a *job.Artifacts) error {
		p, ok := a.Index.Get(clusterID)
		if !ok {
			out = nil
			return nil
		}
		ids := make(map[string]struct{})
		for _, set := range [][]string{p.FromIDs, p.ToIDs, p.BodyIDs} {
			for _, id := range set {
				ids[id] = struct{}{}
			}
		}
		var parts []message.Part
		for _, part := range a.Parts {
			if _, ok := ids[part.ID]; ok {
				parts = append(parts, part)
			}
		}
		out = toViews(parts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Health describes collaborator reachability.
type Health struct {
	OK        bool   `json:"ok"`
	Extractor string `json:"extractor,omitempty"`
}

// CheckHealth probes the extraction collaborator when one is configured.
func (s *Service) CheckHealth(ctx context.Context) Health {
	h := Health{OK: true}
	if s.extractor == nil {
		return h
	}
	if err := s.extractor.Ping(ctx); err != nil {
		h.OK = false
		h.Extractor = err.Error()
		return h
	}
	h.Extractor = "reachable"
	return h
}

func toViews(parts []message.Part) []PartView {
	out := make([]PartView, 0, len(parts))
	for _, p := range parts {
		v := PartView{
			PartID:  p.ID,
			From:    p.From,
			To:      p.Recipients(),
			Subject: p.Subject,
			Body:    p.Body,
		}
		if p.HasDate {
			v.Date = p.Date.UTC().Format(time.RFC3339)
		}
		out = append(out, v)
	}
	return out
}
