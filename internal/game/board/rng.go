package board

import (
	cryptoRand "crypto/rand"
	"math/big"
	"math/rand/v2"
)

// Source draws uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

// cryptoSource is the default source, backed by crypto/rand.
type cryptoSource struct{}

func (cryptoSource) IntN(n int) int {
	v, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("board: crypto source unavailable: " + err.Error())
	}
	return int(v.Int64())
}

// CryptoSource returns the production source.
func CryptoSource() Source { return cryptoSource{} }

// seededSource is a reproducible source for tests and simulations.
type seededSource struct{ r *rand.Rand }

// NewSeededSource returns a deterministic PCG-backed source.
func NewSeededSource(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededSource) IntN(n int) int { return s.r.IntN(n) }
