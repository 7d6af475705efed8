package biome

import (
	"fmt"
	"strings"
)

// Weight is the contribution of one biome at a point.
type Weight struct {
	Biome ID
	Value float64
}

// Blend maps biome ids to non-negative weights that sum to one. Weights holds
// only non-zero entries in ascending id order; Dominant is the biome with the
// largest weight.
type Blend struct {
	Dominant ID
	Weights  []Weight
}

// Pure is a blend made entirely of one biome.
func Pure(id ID) Blend {
	return Blend{Dominant: id, Weights: []Weight{{Biome: id, Value: 1}}}
}

// Weight returns the weight of id, zero when absent.
func (b Blend) Weight(id ID) float64 {
	for _, w := range b.Weights {
		if w.Biome == id {
			return w.Value
		}
	}
	return 0
}

func (b Blend) Sum() float64 {
	sum := 0.0
	for _, w := range b.Weights {
		sum += w.Value
	}
	return sum
}

func (b Blend) String() string {
	parts := make([]string, len(b.Weights))
	for i, w := range b.Weights {
		parts[i] = fmt.Sprintf("%d:%.3f", w.Biome, w.Value)
	}
	return fmt.Sprintf("blend(dominant=%d %s)", b.Dominant, strings.Join(parts, " "))
}
