package places

import (
	"sort"
	"strings"
)

// matchClass scores how well a label matches the query: exact name match
// beats a prefix match beats a substring match beats no textual match.
func matchClass(label, query string) int {
	l := strings.ToLower(strings.TrimSpace(label))
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case l == q:
		return 0
	case strings.HasPrefix(l, q):
		return 1
	case strings.Contains(l, q):
		return 2
	default:
		return 3
	}
}

// Rank orders candidates by textual match quality against the query, then
// by distance, and caps the list at MaxCandidates. The input slice is
// sorted in place and returned.
func Rank(cands []Candidate, query string) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := matchClass(cands[i].Label, query), matchClass(cands[j].Label, query)
		if ci != cj {
			return ci < cj
		}
		return cands[i].DistanceMeters < cands[j].DistanceMeters
	})
	if len(cands) > MaxCandidates {
		cands = cands[:MaxCandidates]
	}
	return cands
}
