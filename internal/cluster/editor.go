package cluster

import (
	"sort"

	sifterr "github.com/sarsift/sarsift/internal/errors"
)

// Create adds a new cluster. ID is optional; when empty it is derived from
// the member set. Members are moved out of their current clusters.
type Create struct {
	ID      string   `json:"id,omitempty"`
	Label   string   `json:"label,omitempty"`
	Members []string `json:"members"`
}

// Move reassigns one identifier to the target cluster. The target must
// exist, or be created earlier in the same batch.
type Move struct {
	Identifier      string `json:"identifier"`
	TargetClusterID string `json:"target_cluster_id"`
}

// Relabel replaces a cluster's gold label.
type Relabel struct {
	ClusterID string `json:"cluster_id"`
	Label     string `json:"label"`
}

// EditBatch is one logical edit transaction: all of it applies, or none.
type EditBatch struct {
	Creates  []Create  `json:"creates,omitempty"`
	Moves    []Move    `json:"moves,omitempty"`
	Relabels []Relabel `json:"relabels,omitempty"`
}

// Empty reports whether the batch contains no operations.
func (b *EditBatch) Empty() bool {
	return len(b.Creates) == 0 && len(b.Moves) == 0 && len(b.Relabels) == 0
}

// EditResult describes a committed batch.
type EditResult struct {
	State *State
	// Touched lists surviving clusters whose membership changed; only these
	// need postings recomputes.
	Touched []string
	// Removed lists clusters deleted because the batch emptied them.
	Removed []string
}

// Apply validates and applies the batch against st, returning the new state.
// st itself is never mutated: validation failures reject the whole batch and
// the caller keeps serving the prior state. Part content is never touched;
// only cluster membership and labels change.
//
// Operations apply creates first, then moves, then relabels, so a move may
// target a cluster created by the same batch. Clusters emptied by the batch
// are deleted.
func Apply(st *State, batch EditBatch) (*EditResult, error) {
	if err := validate(st, batch); err != nil {
		return nil, err
	}

	work := st.Clone()
	touched := make(map[string]struct{})

	for _, c := range batch.Creates {
		id := c.ID
		if id == "" {
			id = ClusterID(c.Members)
		}
		label := c.Label
		if label == "" && len(c.Members) > 0 {
			label = c.Members[0]
		}
		work.Clusters[id] = &Cluster{ID: id, Label: label}
		touched[id] = struct{}{}
		for _, ident := range dedupe(c.Members) {
			moveIdentifier(work, ident, id, touched)
		}
	}

	for _, m := range batch.Moves {
		moveIdentifier(work, m.Identifier, m.TargetClusterID, touched)
	}

	for _, r := range batch.Relabels {
		work.Clusters[r.ClusterID].Label = r.Label
	}

	var removed []string
	for id, c := range work.Clusters {
		if len(c.Members) == 0 {
			delete(work.Clusters, id)
			delete(touched, id)
			removed = append(removed, id)
		}
	}

	if err := checkPartition(work); err != nil {
		return nil, err
	}

	result := &EditResult{State: work, Removed: removed}
	for id := range touched {
		result.Touched = append(result.Touched, id)
	}
	sort.Strings(result.Touched)
	sort.Strings(result.Removed)
	return result, nil
}

// validate checks the whole batch against st before anything is applied.
func validate(st *State, batch EditBatch) error {
	// Track clusters created by this batch; moves may target them.
	created := make(map[string]struct{})
	claimed := make(map[string]string) // identifier -> claiming op

	for i, c := range batch.Creates {
		if len(c.Members) == 0 {
			return sifterr.Newf(sifterr.ErrCodeEmptyCreate,
				"create %d has no members", i)
		}
		id := c.ID
		if id == "" {
			id = ClusterID(c.Members)
		}
		if _, exists := st.Clusters[id]; exists {
			return sifterr.Newf(sifterr.ErrCodeDuplicateMember,
				"create %d collides with existing cluster %s", i, id)
		}
		if _, dup := created[id]; dup {
			return sifterr.Newf(sifterr.ErrCodeDuplicateMember,
				"create %d repeats cluster id %s", i, id)
		}
		created[id] = struct{}{}
		for _, ident := range dedupe(c.Members) {
			if prev, dup := claimed[ident]; dup {
				return sifterr.Newf(sifterr.ErrCodeDuplicateMember,
					"identifier %q claimed by %s and create %d: an identifier may not end in two clusters",
					ident, prev, i).WithDetail("identifier", ident)
			}
			claimed[ident] = "create"
		}
	}

	for i, m := range batch.Moves {
		if m.Identifier == "" {
			return sifterr.Newf(sifterr.ErrCodeUnknownIdentifier, "move %d has empty identifier", i)
		}
		if _, known := st.ByIdentifier[m.Identifier]; !known {
			if _, inBatch := claimed[m.Identifier]; !inBatch {
				return sifterr.Newf(sifterr.ErrCodeUnknownIdentifier,
					"move %d: identifier %q is not in any cluster", i, m.Identifier).
					WithDetail("identifier", m.Identifier)
			}
		}
		_, existing := st.Clusters[m.TargetClusterID]
		_, inBatch := created[m.TargetClusterID]
		if !existing && !inBatch {
			return sifterr.Newf(sifterr.ErrCodeUnknownCluster,
				"move %d: target cluster %q does not exist and is not created in this batch",
				i, m.TargetClusterID).WithDetail("cluster_id", m.TargetClusterID)
		}
		// A later move overrides an earlier claim; last write wins in-order.
		claimed[m.Identifier] = "move"
	}

	for i, r := range batch.Relabels {
		if _, existing := st.Clusters[r.ClusterID]; !existing {
			if _, inBatch := created[r.ClusterID]; !inBatch {
				return sifterr.Newf(sifterr.ErrCodeUnknownCluster,
					"relabel %d: unknown cluster %q", i, r.ClusterID).
					WithDetail("cluster_id", r.ClusterID)
			}
		}
		if r.Label == "" {
			return sifterr.Newf(sifterr.ErrCodeEmptyLabel,
				"relabel %d: label must not be empty", i)
		}
	}

	return nil
}

// moveIdentifier removes ident from its current cluster (if any) and adds it
// to the target, recording both as touched.
func moveIdentifier(st *State, ident, target string, touched map[string]struct{}) {
	if prev, ok := st.ByIdentifier[ident]; ok {
		if prev == target {
			return
		}
		c := st.Clusters[prev]
		c.Members = removeString(c.Members, ident)
		touched[prev] = struct{}{}
	}

	dst := st.Clusters[target]
	if !dst.HasMember(ident) {
		dst.Members = append(dst.Members, ident)
		sort.Strings(dst.Members)
	}
	st.ByIdentifier[ident] = target
	touched[target] = struct{}{}
}

// checkPartition verifies the one-cluster-per-identifier invariant over the
// whole state. Violations reject the batch.
func checkPartition(st *State) error {
	owner := make(map[string]string, len(st.ByIdentifier))
	for id, c := range st.Clusters {
		for _, m := range c.Members {
			if prev, dup := owner[m]; dup {
				return sifterr.Newf(sifterr.ErrCodeDuplicateMember,
					"identifier %q is a member of clusters %s and %s", m, prev, id).
					WithDetail("identifier", m)
			}
			owner[m] = id
			if st.ByIdentifier[m] != id {
				return sifterr.Newf(sifterr.ErrCodeInternal,
					"reverse lookup for %q disagrees with membership", m)
			}
		}
	}
	for ident := range st.ByIdentifier {
		if _, ok := owner[ident]; !ok {
			return sifterr.Newf(sifterr.ErrCodeInternal,
				"reverse lookup references %q which is in no cluster", ident)
		}
	}
	return nil
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func dedupe(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	var out []string
	for _, x := range s {
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
