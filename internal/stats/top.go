package stats

import (
	"sort"

	"github.com/verte-zerg/frametype/internal/model"
)

// MostPracticed returns the n characters with the most recorded keystrokes,
// as a set. Ties go to the lower character so tables stay stable between runs.
func MostPracticed(aggs []model.CharAggregate, n int) map[string]struct{} {
	if n <= 0 {
		return nil
	}
	ranked := make([]model.CharAggregate, len(aggs))
	copy(ranked, aggs)
	sort.Slice(ranked, func(i, j int) bool {
		ti, tj := attempts(ranked[i]), attempts(ranked[j])
		if ti != tj {
			return ti > tj
		}
		return ranked[i].Char < ranked[j].Char
	})
	keep := make(map[string]struct{}, min(n, len(ranked)))
	for _, agg := range ranked[:min(n, len(ranked))] {
		keep[agg.Char] = struct{}{}
	}
	return keep
}

func attempts(agg model.CharAggregate) int {
	return agg.Correct + agg.Incorrect
}
