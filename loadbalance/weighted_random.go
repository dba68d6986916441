package loadbalance

import (
	"fmt"
	"math/rand"
)

// WeightedRandomBalancer selects candidates probabilistically based on their weight.
// A candidate with weight 10 gets roughly 2x the traffic of one with weight 5.
//
// Best for: heterogeneous instances (e.g., some peers have more CPU/memory,
// or only a subset advertise RMA capability and should carry more put/get
// traffic).
//
// Algorithm:
//  1. Sum all weights → totalWeight
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each candidate's weight from r until r < 0
//  4. The candidate that makes r negative is selected
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(candidates []Candidate) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates available")
	}

	totalWeight := 0
	for _, v := range candidates {
		totalWeight += v.Weight
	}

	r := rand.Intn(totalWeight)
	for i := range candidates {
		r -= candidates[i].Weight
		if r < 0 {
			return &candidates[i], nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
