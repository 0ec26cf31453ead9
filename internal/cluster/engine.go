package cluster

import (
	"crypto/sha1"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Cluster is one curated identity bucket.
type Cluster struct {
	// ID is stable once created; derived from the founding member set.
	ID string
	// Label is the gold display name. Operator-settable via the editor.
	Label string
	// Members is the sorted set of raw identifier strings.
	Members []string
}

// HasMember reports whether ident is a member.
func (c *Cluster) HasMember(ident string) bool {
	for _, m := range c.Members {
		if m == ident {
			return true
		}
	}
	return false
}

// State is the full clustering state for one job: the clusters plus the
// reverse identifier lookup. Clusters partition the identifier space: every
// extracted identifier belongs to exactly one cluster.
type State struct {
	Clusters     map[string]*Cluster
	ByIdentifier map[string]string
}

// NewState returns an empty clustering state.
func NewState() *State {
	return &State{
		Clusters:     make(map[string]*Cluster),
		ByIdentifier: make(map[string]string),
	}
}

// Clone deep-copies the state. Edits validate and apply against a clone so
// a rejected batch leaves prior state untouched.
func (s *State) Clone() *State {
	out := NewState()
	for id, c := range s.Clusters {
		members := make([]string, len(c.Members))
		copy(members, c.Members)
		out.Clusters[id] = &Cluster{ID: c.ID, Label: c.Label, Members: members}
	}
	for ident, cid := range s.ByIdentifier {
		out.ByIdentifier[ident] = cid
	}
	return out
}

// ClusterID derives a stable cluster id from a member set, matching the
// original artifact format: sha1 over the sorted members, 12 hex chars.
func ClusterID(members []string) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, "||")))
	return fmt.Sprintf("%x", sum)[:12]
}

// Result is the outcome of an initial clustering run.
type Result struct {
	State *State
	// Skipped counts identifiers with no extractable name/address content;
	// they are not clustered and not searchable.
	Skipped int
}

// Engine groups raw identifiers into identity clusters.
type Engine struct {
	scorer    Scorer
	threshold float64
	prelabels map[string]string
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrelabels marks identifiers that carry an explicit gold label; a
// cluster containing one prefers it over the frequency heuristic.
func WithPrelabels(labels map[string]string) Option {
	return func(e *Engine) { e.prelabels = labels }
}

// NewEngine creates a clustering engine. scorer decides borderline merges;
// threshold is the minimum score that connects two identifiers.
func NewEngine(scorer Scorer, threshold float64, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{scorer: scorer, threshold: threshold, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cluster partitions the identifier stream into identity clusters. The
// input carries one entry per occurrence; duplicates weight the gold-label
// frequency heuristic. Deterministic for fixed input and a fixed scorer.
//
// Merge precedence: exact normalized-address equality, then exact
// normalized-name equality, then scorer similarity against the threshold.
// Merging is transitive over the resulting decision graph.
func (e *Engine) Cluster(identStream []string) *Result {
	uniq, freq, skipped := e.collect(identStream)
	if len(uniq) == 0 {
		return &Result{State: NewState(), Skipped: skipped}
	}

	uf := newUnionFind(len(uniq))

	// Exact matches on the normalized form: addresses and names alike.
	// An identifier equal in normalized form to another always merges.
	byNorm := make(map[string]int, len(uniq))
	for i, id := range uniq {
		n := Normalize(id)
		if j, ok := byNorm[n]; ok {
			uf.union(i, j)
		} else {
			byNorm[n] = i
		}
	}

	// Forced edges: `Name <email>` composites guarantee a link between the
	// display name and the address.
	index := make(map[string]int, len(uniq))
	for i, id := range uniq {
		index[id] = i
	}
	for i, id := range uniq {
		if name, addr, ok := SplitComposite(id); ok {
			if j, ok := index[addr]; ok {
				uf.union(i, j)
			} else if j, ok := byNorm[Normalize(addr)]; ok {
				uf.union(i, j)
			}
			if name != "" {
				if j, ok := byNorm[Normalize(name)]; ok {
					uf.union(i, j)
				}
			}
		}
	}

	// Borderline pairs from blocking keys, decided by the scorer.
	for _, pair := range candidatePairs(uniq) {
		i, j := pair[0], pair[1]
		if uf.find(i) == uf.find(j) {
			continue
		}
		if e.scorer.Score(uniq[i], uniq[j]) < e.threshold {
			continue
		}
		if !e.mergeAllowed(uniq[i], uniq[j]) {
			continue
		}
		uf.union(i, j)
	}

	state := e.buildState(uniq, freq, uf)
	e.logger.Info("clustering_complete",
		slog.Int("identifiers", len(uniq)),
		slog.Int("clusters", len(state.Clusters)),
		slog.Int("skipped", skipped))
	return &Result{State: state, Skipped: skipped}
}

// collect de-duplicates the occurrence stream preserving first-seen order,
// counts frequencies, and drops identifiers that normalize to nothing.
func (e *Engine) collect(stream []string) (uniq []string, freq map[string]int, skipped int) {
	freq = make(map[string]int)
	seen := make(map[string]struct{})
	for _, raw := range stream {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if Normalize(raw) == "" {
			if _, dup := seen[raw]; !dup {
				seen[raw] = struct{}{}
				skipped++
			}
			continue
		}
		freq[raw]++
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		uniq = append(uniq, raw)
	}
	return uniq, freq, skipped
}

// mergeAllowed applies structural guardrails to scorer-driven merges, so a
// high lexical score cannot join incompatible names. Exact and forced
// merges bypass this.
func (e *Engine) mergeAllowed(a, b string) bool {
	pa, pb := parseIdentifier(a), parseIdentifier(b)

	// Two display names need an agreeing surname and a compatible first name.
	if !pa.isEmail && !pb.isEmail {
		if pa.last == "" || pb.last == "" || pa.last != pb.last {
			return false
		}
		return firstCompatible(pa, pb)
	}

	// Two addresses need the same domain with near-identical local parts.
	if pa.isEmail && pb.isEmail {
		return pa.domain == pb.domain && seqRatio(pa.local, pb.local) >= 0.85
	}

	// Name/address pairs are allowed; the scorer already demands the name
	// inside the local part.
	return true
}

// buildState materializes connected components into clusters.
func (e *Engine) buildState(uniq []string, freq map[string]int, uf *unionFind) *State {
	components := make(map[int][]string)
	var roots []int
	for i, id := range uniq {
		root := uf.find(i)
		if _, ok := components[root]; !ok {
			roots = append(roots, root)
		}
		components[root] = append(components[root], id)
	}

	state := NewState()
	for _, root := range roots {
		firstSeen := components[root]
		members := make([]string, len(firstSeen))
		copy(members, firstSeen)
		sort.Strings(members)

		c := &Cluster{
			ID:      ClusterID(members),
			Label:   e.goldLabel(firstSeen, freq),
			Members: members,
		}
		state.Clusters[c.ID] = c
		for _, m := range members {
			state.ByIdentifier[m] = c.ID
		}
	}
	return state
}

// goldLabel chooses the canonical display name for a member set:
// an explicitly pre-labelled member wins; otherwise the most frequently
// occurring display name (ties by first-seen order, which the members slice
// preserves); bare addresses are the last resort, lowest first.
func (e *Engine) goldLabel(membersFirstSeen []string, freq map[string]int) string {
	for _, m := range membersFirstSeen {
		if label, ok := e.prelabels[m]; ok && label != "" {
			return label
		}
	}

	// Composite members contribute their display-name part; bare addresses
	// contribute nothing unless no name exists at all.
	freqByLabel := make(map[string]int)
	var order []string
	for _, m := range membersFirstSeen {
		if IsAddress(m) {
			continue
		}
		label := m
		if name, _, ok := SplitComposite(m); ok {
			name = strings.Trim(strings.TrimSpace(name), `"`)
			if name == "" {
				continue
			}
			label = name
		}
		if _, seen := freqByLabel[label]; !seen {
			order = append(order, label)
		}
		freqByLabel[label] += freq[m]
	}

	best := ""
	bestFreq := -1
	for _, label := range order {
		if f := freqByLabel[label]; f > bestFreq {
			best, bestFreq = label, f
		}
	}
	if best != "" {
		return best
	}

	addrs := make([]string, 0, len(membersFirstSeen))
	addrs = append(addrs, membersFirstSeen...)
	sort.Strings(addrs)
	return addrs[0]
}

// unionFind is a classic disjoint-set with path compression.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(i, j int) {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return
	}
	if uf.rank[ri] < uf.rank[rj] {
		ri, rj = rj, ri
	}
	uf.parent[rj] = ri
	if uf.rank[ri] == uf.rank[rj] {
		uf.rank[ri]++
	}
}
