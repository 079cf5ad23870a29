package stats

import (
	"sort"
	"unicode"

	"github.com/verte-zerg/frametype/internal/model"
)

// WeakestChars returns up to top characters with the lowest accuracy, weakest
// first. Characters that were never attempted are skipped. A non-positive top
// returns every attempted character.
func WeakestChars(aggs []model.CharAggregate, top int) []string {
	candidates := make([]model.CharAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Correct+agg.Incorrect > 0 && agg.Char != "" {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ai := accuracy(candidates[i])
		aj := accuracy(candidates[j])
		if ai == aj {
			return candidates[i].Char < candidates[j].Char
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	out := make([]string, 0, top)
	for _, agg := range candidates[:top] {
		out = append(out, agg.Char)
	}
	return out
}

// SelectWeakChars is WeakestChars as a set keyed by character.
func SelectWeakChars(aggs []model.CharAggregate, top int) map[string]struct{} {
	weakSet := map[string]struct{}{}
	for _, ch := range WeakestChars(aggs, top) {
		weakSet[ch] = struct{}{}
	}
	return weakSet
}

// WeakRunes lower-cases the first rune of each weak character, matching the
// lower-cased arena texts.
func WeakRunes(weak map[string]struct{}) map[rune]struct{} {
	out := make(map[rune]struct{}, len(weak))
	for ch := range weak {
		for _, r := range ch {
			out[unicode.ToLower(r)] = struct{}{}
			break
		}
	}
	return out
}

func accuracy(agg model.CharAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}
