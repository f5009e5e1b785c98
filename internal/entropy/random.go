// Package entropy provides the single seeded random source a simulation run draws from.
// Falls back to crypto/rand for the seed when none is configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand/v2"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source wraps one ChaCha8 stream. Every draw in a run (sampling, shuffles,
// identities) goes through the same stream so a seed reproduces the run.
// A Source is not safe for concurrent use; give each island worker its own.
type Source struct {
	seed uint64
	src  *mrand.ChaCha8
	rng  *mrand.Rand
}

// New creates a Source from an explicit seed.
func New(seed uint64) *Source {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], seed^0x9e3779b97f4a7c15)
	src := mrand.NewChaCha8(key)
	return &Source{seed: seed, src: src, rng: mrand.New(src)}
}

// NewRandom creates a Source seeded from crypto/rand. The seed is logged so
// the run can be reproduced.
func NewRandom() *Source {
	seed := CryptoSeed()
	slog.Info("entropy seeded from crypto/rand", "seed", seed)
	return New(seed)
}

// Derive returns an independent Source for a sub-task (one island worker),
// deterministic in the parent seed and the index.
func (s *Source) Derive(index int) *Source {
	return New(s.seed + uint64(index+1)*0xbf58476d1ce4e5b9)
}

// Seed returns the seed this Source was built from.
func (s *Source) Seed() uint64 {
	return s.seed
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a uniform integer in [0, n).
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// IntRange returns a uniform integer in [lo, hi], inclusive.
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// Uniform draws from a continuous uniform distribution over [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

// Normal draws from N(mu, sigma).
func (s *Source) Normal(mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// TruncNormal draws from N(mu, sigma) restricted to [lo, hi] by inverting the
// CDF over the admissible probability band.
func (s *Source) TruncNormal(mu, sigma, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	n := distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}
	pLo, pHi := n.CDF(lo), n.CDF(hi)
	if pHi <= pLo {
		// Band collapsed numerically (bounds far in one tail).
		return lo + (hi-lo)*s.rng.Float64()
	}
	x := n.Quantile(pLo + (pHi-pLo)*s.rng.Float64())
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Shuffle permutes n elements using swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// UUID returns a version 4 identifier drawn from the run stream.
func (s *Source) UUID() uuid.UUID {
	id, err := uuid.NewRandomFromReader(s.src)
	if err != nil {
		// ChaCha8.Read never fails.
		panic(err)
	}
	return id
}

// CryptoSeed returns a seed from crypto/rand.
func CryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return a fixed seed as a safe default.
		return 42
	}
	return binary.LittleEndian.Uint64(buf[:])
}
