package cluster

import "sort"

// maxBucket caps the size of a blocking bucket; larger buckets are too
// generic to yield useful pairs and would blow up the pair count.
const maxBucket = 5000

// blockingKeys derives the candidate-generation keys for one identifier.
// Identifiers sharing a key become candidate pairs for the scorer; this
// keeps scoring far below O(n²).
func blockingKeys(s string) []string {
	var keys []string
	n := Normalize(s)
	if n == "" {
		return nil
	}
	p := parseIdentifier(s)

	if p.isEmail {
		if p.domain != "" {
			keys = append(keys, "dom:"+p.domain)
		}
		// Name-like blockers derived from the local part.
		parts := nameTokens(p.local)
		if len(parts) > 0 {
			last := parts[len(parts)-1]
			if len(last) >= 2 && isAlpha(last) {
				keys = append(keys, "ln:"+last)
				if first := parts[0]; first != "" {
					keys = append(keys, "lnfi:"+last+":"+first[:1])
				}
			}
		}
		return keys
	}

	if p.last != "" {
		keys = append(keys, "ln:"+p.last)
		if p.first != "" {
			keys = append(keys, "lnfi:"+p.last+":"+p.first[:1])
			if g, ok := nicknameGroup[p.first]; ok {
				keys = append(keys, "lnng:"+p.last+":"+string(rune('a'+g)))
			}
		}
	}

	// Ultra-tight prefix fallback only when no better key exists.
	if len(keys) == 0 {
		prefix := n
		if len(prefix) > 5 {
			prefix = prefix[:5]
		}
		keys = append(keys, "npx5:"+prefix)
	}
	return keys
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// candidatePairs returns the index pairs worth scoring, sorted for
// deterministic iteration.
func candidatePairs(idents []string) [][2]int {
	buckets := make(map[string][]int)
	for i, id := range idents {
		for _, k := range blockingKeys(id) {
			buckets[k] = append(buckets[k], i)
		}
	}

	seen := make(map[[2]int]struct{})
	var pairs [][2]int
	for _, ids := range buckets {
		if len(ids) <= 1 || len(ids) > maxBucket {
			continue
		}
		for x := 0; x < len(ids); x++ {
			for y := x + 1; y < len(ids); y++ {
				p := [2]int{ids[x], ids[y]}
				if p[0] > p[1] {
					p[0], p[1] = p[1], p[0]
				}
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				pairs = append(pairs, p)
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
