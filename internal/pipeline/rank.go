package pipeline

import (
	"sort"
	"strings"

	"pimphoto/internal"
)

// DefaultTypeRanks maps the known NL/FR photo type labels to a priority
// category. Packshots are preferred, ambience shots come last; labels not in
// the table rank lowest but are never dropped. The table is a parameter of
// Rank so callers can swap in their own policy.
func DefaultTypeRanks() map[string]int {
	return map[string]int{
		"packshot":         1,
		"productfoto":      2,
		"photo du produit": 2,
		"product photo":    2,
		"verpakking":       3,
		"emballage":        3,
		"packaging":        3,
		"sfeerbeeld":       4,
		"ambiance":         4,
		"lifestyle":        4,
	}
}

// Rank resolves every candidate's ordering key and sorts by
// (product, type rank, sequence rank). The sort is stable: candidates with
// identical keys keep their spreadsheet order, which makes the output
// deterministic for identical input.
func Rank(candidates []internal.PhotoCandidate, typeRanks map[string]int) []internal.RankedCandidate {
	out := make([]internal.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		rc := internal.RankedCandidate{
			PhotoCandidate: c,
			TypeRank:       internal.RankUnknown,
			SeqRank:        internal.SeqLast,
		}
		if rank, ok := typeRanks[strings.ToLower(strings.TrimSpace(c.TypeLabel))]; ok {
			rc.TypeRank = rank
		}
		if c.SequenceNumber != nil {
			rc.SeqRank = *c.SequenceNumber
		}
		out = append(out, rc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProductInternalID != b.ProductInternalID {
			return a.ProductInternalID < b.ProductInternalID
		}
		if a.TypeRank != b.TypeRank {
			return a.TypeRank < b.TypeRank
		}
		return a.SeqRank < b.SeqRank
	})

	return out
}
