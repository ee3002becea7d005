package linalg

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// RNG is a seeded random source whose internal state survives JSON
// round-trips. Checkpointed solvers serialize their RNG so a resumed run
// continues the exact random sequence instead of reseeding.
//
// The generator is PCG (math/rand/v2); its state is 128 bits and
// marshals losslessly.
type RNG struct {
	src *rand.PCG
	r   *rand.Rand
}

// NewRNG creates a generator seeded from a single int64 seed.
// The same seed always yields the same sequence.
func NewRNG(seed int64) *RNG {
	src := rand.NewPCG(uint64(seed), uint64(seed)*0x9e3779b97f4a7c15+1)
	return &RNG{src: src, r: rand.New(src)}
}

// Float64 returns a uniform value in [0, 1).
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Uniform returns a uniform value in [lower, upper).
func (g *RNG) Uniform(lower, upper float64) float64 {
	return lower + (upper-lower)*g.r.Float64()
}

// NormFloat64 returns a standard normal value.
func (g *RNG) NormFloat64() float64 {
	return g.r.NormFloat64()
}

// IntN returns a uniform value in [0, n).
func (g *RNG) IntN(n int) int {
	return g.r.IntN(n)
}

// UniformVector fills a new vector of length dim with uniform values in
// [lower[i], upper[i]).
func (g *RNG) UniformVector(lower, upper []float64) []float64 {
	out := make([]float64, len(lower))
	for i := range out {
		out[i] = g.Uniform(lower[i], upper[i])
	}
	return out
}

type rngState struct {
	State string `json:"state"`
}

// MarshalJSON encodes the generator state as base64.
func (g *RNG) MarshalJSON() ([]byte, error) {
	raw, err := g.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rng state: %w", err)
	}
	return json.Marshal(rngState{State: base64.StdEncoding.EncodeToString(raw)})
}

// UnmarshalJSON restores the generator state, continuing the original
// sequence.
func (g *RNG) UnmarshalJSON(data []byte) error {
	var s rngState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal rng state: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(s.State)
	if err != nil {
		return fmt.Errorf("failed to decode rng state: %w", err)
	}
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("failed to restore rng state: %w", err)
	}
	g.src = src
	g.r = rand.New(src)
	return nil
}
