package cluster

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Scorer is the external similarity-model capability: a pure pairwise score
// in [0, 1]. The clustering algorithm stays deterministic and testable with
// any fixed Scorer.
type Scorer interface {
	Score(a, b string) float64
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(a, b string) float64

// Score implements Scorer.
func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }

// nicknameGroups maps common given-name variants onto one group. Two names
// whose first tokens share a group are treated as first-name compatible.
var nicknameGroups = [][]string{
	{"elizabeth", "liz", "beth", "eliza", "betty", "liza", "lisa"},
	{"alexander", "alex", "sandy", "xander"},
	{"anthony", "tony"},
	{"andrew", "andy", "drew"},
	{"margaret", "maggie", "meg", "peggy"},
	{"jonathan", "jon", "john", "johnny"},
	{"christopher", "chris"},
	{"patricia", "pat", "patti", "trish"},
	{"rebecca", "becky", "becca", "bex"},
	{"sharon", "shaz", "sheri"},
	{"david", "dave", "davey"},
	{"william", "will", "bill", "billy"},
	{"robert", "rob", "bob", "bobby"},
	{"katherine", "kate", "katie", "kathy"},
}

var nicknameGroup = func() map[string]int {
	m := make(map[string]int)
	for i, group := range nicknameGroups {
		for _, alias := range group {
			m[alias] = i
		}
	}
	return m
}()

// LexicalScorer is the built-in similarity model: a fixed-weight blend of
// string, token, and address features over parsed identifiers. It stands in
// for the external trained model behind the same Scorer interface.
type LexicalScorer struct {
	cache *lru.Cache[string, parsedName]
}

// NewLexicalScorer creates a scorer with a bounded parse cache.
func NewLexicalScorer(cacheSize int) *LexicalScorer {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, _ := lru.New[string, parsedName](cacheSize)
	return &LexicalScorer{cache: cache}
}

func (s *LexicalScorer) parse(ident string) parsedName {
	if p, ok := s.cache.Get(ident); ok {
		return p
	}
	p := parseIdentifier(ident)
	s.cache.Add(ident, p)
	return p
}

// Score computes a similarity in [0, 1] for two raw identifiers.
func (s *LexicalScorer) Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	pa, pb := s.parse(a), s.parse(b)

	// Address/address pairs score on local-part similarity anchored by the
	// domain; different domains never merge on lexical evidence alone.
	if pa.isEmail && pb.isEmail {
		if pa.domain != pb.domain {
			return 0.3 * seqRatio(pa.local, pb.local)
		}
		return 0.55 + 0.45*seqRatio(pa.local, pb.local)
	}

	// Name/address pairs score on the name appearing in the local part.
	if pa.isEmail != pb.isEmail {
		name, addr := pa, pb
		if pb.isEmail {
			name, addr = pb, pa
		}
		score := 0.0
		if name.last != "" && strings.Contains(addr.local, name.last) {
			score += 0.55
		}
		if name.first != "" && strings.Contains(addr.local, name.first) {
			score += 0.3
		} else if name.first != "" && strings.HasPrefix(addr.local, name.first[:1]) {
			score += 0.15
		}
		nn, _ := splitAddressFree(na, nb, pa)
		score += 0.15 * seqRatio(strings.ReplaceAll(nn, " ", ""), addr.local)
		return clamp01(score)
	}

	// Name/name pairs.
	score := 0.30*seqRatio(na, nb) +
		0.25*jaccard(nameTokens(na), nameTokens(nb)) +
		0.10*prefixOverlap(na, nb) +
		0.05*lenSim(na, nb)

	if pa.last != "" && pa.last == pb.last {
		score += 0.25
		if firstCompatible(pa, pb) {
			score += 0.20
		}
	}
	if pa.initials != "" && pa.initials == pb.initials {
		score += 0.05
	}
	return clamp01(score)
}

// splitAddressFree returns the name-side normalized string first.
func splitAddressFree(na, nb string, pa parsedName) (name, addr string) {
	if pa.isEmail {
		return nb, na
	}
	return na, nb
}

// firstCompatible reports whether two parsed names have compatible first
// names: equal, matching initial, or a shared nickname group.
func firstCompatible(a, b parsedName) bool {
	if a.first == "" || b.first == "" {
		return false
	}
	if a.first == b.first || a.first[:1] == b.first[:1] {
		return true
	}
	ga, okA := nicknameGroup[a.first]
	gb, okB := nicknameGroup[b.first]
	return okA && okB && ga == gb
}

// seqRatio is a similarity ratio based on the longest common subsequence,
// comparable to difflib-style sequence matching.
func seqRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	l := lcsLength(a, b)
	return 2.0 * float64(l) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func prefixOverlap(a, b string) float64 {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return float64(i) / float64(longest)
}

func lenSim(a, b string) float64 {
	la, lb := len(a), len(b)
	if la+lb == 0 {
		return 1
	}
	return 1 - float64(abs(la-lb))/float64(la+lb)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
