// Public domain.

// Package catalog holds shear catalogs: galaxy positions with measured
// shears and optional weights.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidCatalog is returned for catalogs with mismatched column lengths
// or values that cannot be binned.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is a column oriented galaxy catalog.
//
// RA and Dec are in degrees.  Weight may be nil, meaning all galaxies weigh
// the same.
type Catalog struct {
	RA, Dec []float64
	G1, G2  []float64
	Weight  []float64
}

// Len returns the number of galaxies.
func (c *Catalog) Len() int { return len(c.RA) }

// Validate checks column lengths and values.  Positions and shears must be
// finite, Dec within ±90, weights finite and non-negative.
func (c *Catalog) Validate() error {
	n := len(c.RA)
	if len(c.Dec) != n || len(c.G1) != n || len(c.G2) != n {
		return fmt.Errorf("%w: column lengths ra %d dec %d g1 %d g2 %d",
			ErrInvalidCatalog, n, len(c.Dec), len(c.G1), len(c.G2))
	}
	if c.Weight != nil && len(c.Weight) != n {
		return fmt.Errorf("%w: %d weights for %d galaxies",
			ErrInvalidCatalog, len(c.Weight), n)
	}
	for i := 0; i < n; i++ {
		switch {
		case !finite(c.RA[i]) || !finite(c.Dec[i]):
			return fmt.Errorf("%w: galaxy %d position not finite", ErrInvalidCatalog, i)
		case math.Abs(c.Dec[i]) > 90:
			return fmt.Errorf("%w: galaxy %d dec %g", ErrInvalidCatalog, i, c.Dec[i])
		case !finite(c.G1[i]) || !finite(c.G2[i]):
			return fmt.Errorf("%w: galaxy %d shear not finite", ErrInvalidCatalog, i)
		case c.Weight != nil && !(c.Weight[i] >= 0 && finite(c.Weight[i])):
			return fmt.Errorf("%w: galaxy %d weight %g", ErrInvalidCatalog, i, c.Weight[i])
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ShapeNoise summarizes the shear distribution of a catalog.  Sigma1 and
// Sigma2 are weighted standard deviations of the two components.
type ShapeNoise struct {
	N              int
	Mean1, Mean2   float64
	Sigma1, Sigma2 float64
}

// Sigma returns the per component dispersion, the quadrature mean of Sigma1
// and Sigma2.
func (s ShapeNoise) Sigma() float64 {
	return math.Sqrt((s.Sigma1*s.Sigma1 + s.Sigma2*s.Sigma2) / 2)
}

// ShapeNoise computes shear statistics of c.  Standard deviations are NaN
// for catalogs of fewer than two galaxies.
func (c *Catalog) ShapeNoise() ShapeNoise {
	s := ShapeNoise{N: c.Len()}
	s.Mean1, s.Sigma1 = stat.MeanStdDev(c.G1, c.Weight)
	s.Mean2, s.Sigma2 = stat.MeanStdDev(c.G2, c.Weight)
	return s
}
