// Package generator builds randomized prompt sequences.
package generator

import (
	"math/rand"
	"time"
)

// DrillRepeats is how many times each character appears in a drill sequence.
const DrillRepeats = 3

// Generator produces randomized sequences. It is not safe for concurrent use.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Shuffle returns a Fisher–Yates shuffled copy of items.
func (g *Generator) Shuffle(items []string) []string {
	out := append([]string(nil), items...)
	for i := len(out) - 1; i > 0; i-- {
		j := g.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DrillSequence repeats every character DrillRepeats times and shuffles the
// result. Characters in weak get factor extra copies, rounded down.
func (g *Generator) DrillSequence(chars []string, weak map[string]struct{}, factor float64) []string {
	seq := make([]string, 0, len(chars)*DrillRepeats)
	for _, ch := range chars {
		n := DrillRepeats
		if _, ok := weak[ch]; ok && factor > 0 {
			n += int(float64(DrillRepeats) * factor)
		}
		for i := 0; i < n; i++ {
			seq = append(seq, ch)
		}
	}
	return g.Shuffle(seq)
}

// PickText selects one text uniformly.
func (g *Generator) PickText(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	return texts[g.rnd.Intn(len(texts))]
}

// PickWeighted selects a text with a bias toward texts containing weak characters.
func (g *Generator) PickWeighted(texts []string, weak map[rune]struct{}, factor float64) string {
	if len(texts) == 0 {
		return ""
	}
	if len(weak) == 0 || factor <= 0 {
		return g.PickText(texts)
	}
	weights := make([]float64, len(texts))
	total := 0.0
	for i, text := range texts {
		weakCount := 0
		for _, r := range text {
			if _, ok := weak[r]; ok {
				weakCount++
			}
		}
		w := 1.0 + float64(weakCount)*factor
		weights[i] = w
		total += w
	}

	r := g.rnd.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return texts[i]
		}
	}
	return texts[len(texts)-1]
}
