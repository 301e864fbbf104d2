// Public domain.

package catalog

import (
	"fmt"
	"math"
)

// Rand is the random source used by a Resampler.
//
// It is satisfied by *rand.Rand of golang.org/x/exp/rand.  Each caller
// passes its own source, so a Resampler carries no mutable state and may be
// shared between goroutines.
type Rand interface {
	Float64() float64
	Perm(n int) []int
}

// Method selects how a Resampler randomizes shears.
type Method string

const (
	// Rotate turns each shear by a uniform random spin-2 angle.  |g| of
	// every galaxy is kept and the expected shear is zero.
	Rotate Method = "rotate"
	// Shuffle permutes shears among galaxies, keeping the empirical shear
	// distribution.
	Shuffle Method = "shuffle"
)

// ParseMethod returns the Method named by s.  The empty string is Rotate.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Rotate:
		return Rotate, nil
	case Shuffle:
		return Shuffle, nil
	}
	return "", fmt.Errorf("unknown resampling method %q", s)
}

// Resampler produces noise catalogs: same positions and weights, shears
// randomized so that any lensing signal is destroyed.
type Resampler struct {
	Method Method
}

// Resample returns a new catalog with randomized shears.  Cat is not
// modified and the result shares no storage with it.
func (r Resampler) Resample(cat *Catalog, rnd Rand) *Catalog {
	n := cat.Len()
	out := &Catalog{
		RA:  append([]float64(nil), cat.RA...),
		Dec: append([]float64(nil), cat.Dec...),
		G1:  make([]float64, n),
		G2:  make([]float64, n),
	}
	if cat.Weight != nil {
		out.Weight = append([]float64(nil), cat.Weight...)
	}
	if r.Method == Shuffle {
		for i, j := range rnd.Perm(n) {
			out.G1[i] = cat.G1[j]
			out.G2[i] = cat.G2[j]
		}
		return out
	}
	for i := 0; i < n; i++ {
		// a position angle uniform in [0, π) turns a spin-2 quantity by
		// twice that
		s, c := math.Sincos(2 * math.Pi * rnd.Float64())
		out.G1[i] = cat.G1[i]*c - cat.G2[i]*s
		out.G2[i] = cat.G1[i]*s + cat.G2[i]*c
	}
	return out
}
