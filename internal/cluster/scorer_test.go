package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalScorer_IdenticalNormalizedForms(t *testing.T) {
	s := NewLexicalScorer(64)
	assert.InDelta(t, 1.0, s.Score("Alice Johnson", "alice johnson"), 1e-9)
	assert.InDelta(t, 1.0, s.Score("ALICE@CO.COM", "alice@co.com"), 1e-9)
}

func TestLexicalScorer_SameSurnameCompatibleFirst(t *testing.T) {
	s := NewLexicalScorer(64)

	same := s.Score("Alice Johnson", "A. Johnson")
	different := s.Score("Alice Johnson", "Xavier Johnson")

	assert.Greater(t, same, different)
	assert.Greater(t, same, 0.7)
}

func TestLexicalScorer_NicknamesAreFirstCompatible(t *testing.T) {
	s := NewLexicalScorer(64)

	liz := s.Score("Elizabeth Carter", "Liz Carter")
	eve := s.Score("Elizabeth Carter", "Eve Carter")

	assert.Greater(t, liz, eve)
}

func TestLexicalScorer_AddressPairs(t *testing.T) {
	s := NewLexicalScorer(64)

	sameDomain := s.Score("a.johnson@co.com", "ajohnson@co.com")
	crossDomain := s.Score("a.johnson@co.com", "a.johnson@other.org")

	assert.Greater(t, sameDomain, crossDomain)
	assert.Greater(t, sameDomain, 0.9)
	// Cross-domain lexical evidence alone never clears a sane threshold.
	assert.Less(t, crossDomain, 0.5)
}

func TestLexicalScorer_NameAgainstAddress(t *testing.T) {
	s := NewLexicalScorer(64)

	matching := s.Score("Eve Martin", "eve.martin@co.com")
	unrelated := s.Score("Eve Martin", "quarterly.reports@co.com")

	assert.Greater(t, matching, 0.85)
	assert.Less(t, unrelated, 0.4)
}

func TestLexicalScorer_UnusableInputScoresZero(t *testing.T) {
	s := NewLexicalScorer(64)
	assert.Zero(t, s.Score("", "alice@co.com"))
	assert.Zero(t, s.Score(`"<>"`, "alice@co.com"))
}

func TestLexicalScorer_Symmetric(t *testing.T) {
	s := NewLexicalScorer(64)
	pairs := [][2]string{
		{"Alice Johnson", "A. Johnson"},
		{"Eve Martin", "eve.martin@co.com"},
		{"a@co.com", "b@co.com"},
	}
	for _, p := range pairs {
		assert.InDelta(t, s.Score(p[0], p[1]), s.Score(p[1], p[0]), 1e-9, "%v", p)
	}
}

func TestSeqRatio(t *testing.T) {
	assert.InDelta(t, 1.0, seqRatio("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, seqRatio("abc", "xyz"), 1e-9)
	assert.InDelta(t, 1.0, seqRatio("", ""), 1e-9)
	assert.InDelta(t, 0.0, seqRatio("abc", ""), 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, jaccard([]string{"a", "b"}, []string{"b", "a"}), 1e-9)
	assert.InDelta(t, 0.5, jaccard([]string{"a", "b"}, []string{"a", "c"}), 1e-9)
	assert.InDelta(t, 0.0, jaccard(nil, nil), 1e-9)
}

func TestBlockingKeys(t *testing.T) {
	// Shared surname blocks put name variants in the same bucket.
	assert.Contains(t, blockingKeys("Alice Johnson"), "ln:johnson")
	assert.Contains(t, blockingKeys("A. Johnson"), "lnfi:johnson:a")

	// Addresses block on domain and on name tokens in the local part.
	keys := blockingKeys("alice.johnson@co.com")
	assert.Contains(t, keys, "dom:co.com")
	assert.Contains(t, keys, "ln:johnson")
	assert.Contains(t, keys, "lnfi:johnson:a")

	// Single-token names fall back to a tight prefix key.
	assert.Equal(t, []string{"npx5:madon"}, blockingKeys("Madonna"))
}

func TestCandidatePairs_DeterministicAndDeduplicated(t *testing.T) {
	idents := []string{"Alice Johnson", "A. Johnson", "alice.johnson@co.com", "Bob Singh"}

	p1 := candidatePairs(idents)
	p2 := candidatePairs(idents)
	assert.Equal(t, p1, p2)

	seen := make(map[[2]int]int)
	for _, p := range p1 {
		seen[p]++
		assert.Less(t, p[0], p[1])
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "pair %v duplicated", p)
	}
}
