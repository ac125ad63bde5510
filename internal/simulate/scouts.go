package simulate

import (
	"math"
	"sort"
)

// Scout is a synthetic scout that over- or under-counts every scored
// action by Bias.
type Scout struct {
	ID   string  `json:"id"`
	Bias float64 `json:"bias"`
}

// DefaultScouts returns the five canonical scouts: one exact, two that
// over-count, one that under-counts and one that over-counts heavily.
func DefaultScouts() []Scout {
	return []Scout{
		{ID: "alice", Bias: 1.0},
		{ID: "bob", Bias: 1.1},
		{ID: "charlie", Bias: 0.85},
		{ID: "diana", Bias: 1.05},
		{ID: "eve", Bias: 1.25},
	}
}

// ExpectedOrder ranks scouts by how far their bias is from exact, breaking
// ties by id.
func ExpectedOrder(scouts []Scout) []string {
	sorted := make([]Scout, len(scouts))
	copy(sorted, scouts)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := math.Abs(sorted[i].Bias-1), math.Abs(sorted[j].Bias-1)
		if di != dj {
			return di < dj
		}
		return sorted[i].ID < sorted[j].ID
	})
	out := make([]string, len(sorted))
	for i, s := range sorted {
		out[i] = s.ID
	}
	return out
}
