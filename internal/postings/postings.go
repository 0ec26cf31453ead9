// Package postings maintains the role-partitioned inverted index: for each
// identity cluster, the sets of part ids where any member appears as sender,
// recipient, or body mention. Postings are derived purely from cluster
// membership and the occurrence table and are rebuilt whenever membership
// changes.
package postings

import (
	"sort"

	"github.com/sarsift/sarsift/internal/cluster"
	"github.com/sarsift/sarsift/internal/extract"
)

// Postings holds one cluster's part-id sets, one per occurrence role. Each
// set is sorted and de-duplicated.
type Postings struct {
	FromIDs []string `json:"from_ids"`
	ToIDs   []string `json:"to_ids"`
	BodyIDs []string `json:"body_ids"`
}

// Role returns the id set for a role. Unknown roles yield nil.
func (p *Postings) Role(r extract.Role) []string {
	switch r {
	case extract.RoleFrom:
		return p.FromIDs
	case extract.RoleToLike:
		return p.ToIDs
	case extract.RoleBodyMention:
		return p.BodyIDs
	}
	return nil
}

// Build computes the postings for one cluster's member set from the
// occurrence table (raw identifier -> occurrences).
func Build(members []string, occ map[string][]extract.Occurrence) *Postings {
	from := make(map[string]struct{})
	to := make(map[string]struct{})
	body := make(map[string]struct{})

	for _, member := range members {
		for _, o := range occ[member] {
			switch o.Role {
			case extract.RoleFrom:
				from[o.PartID] = struct{}{}
			case extract.RoleToLike:
				to[o.PartID] = struct{}{}
			case extract.RoleBodyMention:
				body[o.PartID] = struct{}{}
			}
		}
	}

	return &Postings{
		FromIDs: sortedKeys(from),
		ToIDs:   sortedKeys(to),
		BodyIDs: sortedKeys(body),
	}
}

// Index is the postings table for one job, keyed by cluster id.
type Index struct {
	byCluster map[string]*Postings
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byCluster: make(map[string]*Postings)}
}

// RebuildAll computes postings for every cluster in the state. Used once
// after initial clustering.
func RebuildAll(st *cluster.State, occ map[string][]extract.Occurrence) *Index {
	idx := NewIndex()
	for id, c := range st.Clusters {
		idx.byCluster[id] = Build(c.Members, occ)
	}
	return idx
}

// Recompute rebuilds postings for the touched clusters only and drops the
// removed ones. Clusters outside both lists keep their existing entries
// untouched, which bounds edit cost to the size of the changed clusters.
func (idx *Index) Recompute(st *cluster.State, occ map[string][]extract.Occurrence, touched, removed []string) {
	for _, id := range removed {
		delete(idx.byCluster, id)
	}
	for _, id := range touched {
		c, ok := st.Clusters[id]
		if !ok {
			delete(idx.byCluster, id)
			continue
		}
		idx.byCluster[id] = Build(c.Members, occ)
	}
}

// Get returns the postings for a cluster, or ok=false when the cluster has
// no entry.
func (idx *Index) Get(clusterID string) (*Postings, bool) {
	p, ok := idx.byCluster[clusterID]
	return p, ok
}

// Len reports the number of clusters with postings.
func (idx *Index) Len() int {
	return len(idx.byCluster)
}

// ClusterIDs returns the indexed cluster ids, sorted.
func (idx *Index) ClusterIDs() []string {
	ids := make([]string, 0, len(idx.byCluster))
	for id := range idx.byCluster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies the index. Edit transactions recompute against a clone
// and swap it in on commit so readers never see a half-updated table.
func (idx *Index) Clone() *Index {
	out := NewIndex()
	for id, p := range idx.byCluster {
		out.byCluster[id] = &Postings{
			FromIDs: append([]string(nil), p.FromIDs...),
			ToIDs:   append([]string(nil), p.ToIDs...),
			BodyIDs: append([]string(nil), p.BodyIDs...),
		}
	}
	return out
}

// Set installs a precomputed postings entry. Used when loading persisted
// artifacts.
func (idx *Index) Set(clusterID string, p *Postings) {
	idx.byCluster[clusterID] = p
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
