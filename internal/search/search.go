// Package search evaluates tri-state boolean rules against the postings
// index. Evaluation is exact set algebra: a flat conjunction of
// (cluster, role, polarity) constraints over the part universe, with no
// ranking or fuzziness.
package search

import (
	"log/slog"
	"sort"

	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/postings"
)

// Match is one tri-state cell of a rule.
type Match string

const (
	// MatchAny places no constraint on the role.
	MatchAny Match = "any"
	// MatchYes requires the cluster to appear in the role.
	MatchYes Match = "yes"
	// MatchNo excludes parts where the cluster appears in the role.
	MatchNo Match = "no"
)

// constrains reports whether the cell narrows the result. Anything other
// than yes/no acts as any.
func (m Match) constrains() bool {
	return m == MatchYes || m == MatchNo
}

// Rule constrains one cluster across the three occurrence roles.
type Rule struct {
	ClusterID string `json:"cluster_id"`
	From      Match  `json:"from"`
	To        Match  `json:"to"`
	Body      Match  `json:"body"`
}

// Effective reports whether the rule constrains anything at all.
func (r Rule) Effective() bool {
	return r.From.constrains() || r.To.constrains() || r.Body.constrains()
}

// Evaluator runs rule lists against one job's parts and postings.
type Evaluator struct {
	idx    *postings.Index
	parts  []message.Part
	logger *slog.Logger
}

// NewEvaluator builds an evaluator over a job's part universe. Parts are
// copied and held in result order: date ascending, undated last, part id as
// the tie-break.
func NewEvaluator(idx *postings.Index, parts []message.Part, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	ordered := make([]message.Part, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return message.Less(&ordered[i], &ordered[j])
	})
	return &Evaluator{idx: idx, parts: ordered, logger: logger}
}

// Evaluate returns the parts matching every constraint of every rule, in
// date order. Rules with no constraining cell are skipped with a warning;
// if nothing remains the result is empty, never "all parts". A rule naming
// a cluster with no postings clears the result.
func (e *Evaluator) Evaluate(rules []Rule) []message.Part {
	effective := rules[:0:0]
	for _, r := range rules {
		if !r.Effective() {
			e.logger.Warn("ignoring rule with no constraints", "cluster_id", r.ClusterID)
			continue
		}
		effective = append(effective, r)
	}
	if len(effective) == 0 {
		return nil
	}

	// Start from the universe; every cell only ever shrinks it.
	result := make(map[string]struct{}, len(e.parts))
	for _, p := range e.parts {
		result[p.ID] = struct{}{}
	}

	for _, r := range effective {
		post, ok := e.idx.Get(r.ClusterID)
		if !ok {
			e.logger.Warn("rule references unknown cluster", "cluster_id", r.ClusterID)
			return nil
		}
		applyCell(result, r.From, post.Role(extract.RoleFrom))
		applyCell(result, r.To, post.Role(extract.RoleToLike))
		applyCell(result, r.Body, post.Role(extract.RoleBodyMention))
		if len(result) == 0 {
			return nil
		}
	}

	out := make([]message.Part, 0, len(result))
	for _, p := range e.parts {
		if _, ok := result[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// applyCell narrows the result by one (role, polarity) constraint.
func applyCell(result map[string]struct{}, m Match, ids []string) {
	switch m {
	case MatchYes:
		keep := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := result[id]; ok {
				keep[id] = struct{}{}
			}
		}
		for id := range result {
			if _, ok := keep[id]; !ok {
				delete(result, id)
			}
		}
	case MatchNo:
		for _, id := range ids {
			delete(result, id)
		}
	}
}
