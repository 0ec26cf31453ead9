package job

import (
	"sort"

	"github.com/sarsift/sarsift/internal/cluster"
	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/postings"
)

// Artifacts is everything a finished job produced: the immutable parts,
// the occurrence table, the editable cluster state, and the derived
// postings index. Parts never change after the pipeline ends; clusters and
// postings change together under the job's write lock.
type Artifacts struct {
	Parts       []message.Part
	Occurrences map[string][]extract.Occurrence
	State       *cluster.State
	Index       *postings.Index

	partByID map[string]*message.Part
}

// NewArtifacts assembles the artifact set, ordering parts by date and
// building the id lookup.
func NewArtifacts(parts []message.Part, occ map[string][]extract.Occurrence, st *cluster.State, idx *postings.Index) *Artifacts {
	ordered := make([]message.Part, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return message.Less(&ordered[i], &ordered[j])
	})

	byID := make(map[string]*message.Part, len(ordered))
	for i := range ordered {
		byID[ordered[i].ID] = &ordered[i]
	}

	return &Artifacts{
		Parts:       ordered,
		Occurrences: occ,
		State:       st,
		Index:       idx,
		partByID:    byID,
	}
}

// Part returns the part with the given id, or nil.
func (a *Artifacts) Part(id string) *message.Part {
	return a.partByID[id]
}
