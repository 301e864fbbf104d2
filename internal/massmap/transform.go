// Public domain.

package massmap

import (
	"fmt"
	"math"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/sht"
)

// DefaultIterations is the number of Jacobi refinements used by map
// analysis when a Config leaves it unset.  Fewer leave a shear to
// convergence round trip at lmax = 3*Nside-1 above 1e-3 relative error.
const DefaultIterations = 10

// DefaultReducedShearFloor bounds |1-κ| away from zero in ReducedShear.
const DefaultReducedShearFloor = 1e-3

// Config selects the resolution and harmonic treatment of a Transform.
type Config struct {
	Nside int
	// Lmax <= 0 means 3*Nside-1.
	Lmax int
	// Iterations < 0 means DefaultIterations.  Zero analyzes by quadrature
	// alone.
	Iterations int
	// ReducedShearFloor <= 0 means DefaultReducedShearFloor.
	ReducedShearFloor float64
}

// Transform converts between shear and convergence.  A Transform is read-only
// after NewTransform and safe for concurrent use.
type Transform struct {
	eng   *sht.Engine
	iter  int
	floor float64
	ks    []float64 // Kaiser-Squires factor per l, 0 for l < 2
	inv   []float64 // its inverse, 0 for l < 2
}

// NewTransform returns a Transform for c.
func NewTransform(c Config) (*Transform, error) {
	if c.Lmax <= 0 {
		c.Lmax = 3*c.Nside - 1
	}
	if c.Iterations < 0 {
		c.Iterations = DefaultIterations
	}
	if c.ReducedShearFloor <= 0 {
		c.ReducedShearFloor = DefaultReducedShearFloor
	}
	eng, err := sht.New(c.Nside, c.Lmax)
	if err != nil {
		return nil, err
	}
	t := &Transform{
		eng:   eng,
		iter:  c.Iterations,
		floor: c.ReducedShearFloor,
		ks:    make([]float64, c.Lmax+1),
		inv:   make([]float64, c.Lmax+1),
	}
	for l := 2; l <= c.Lmax; l++ {
		fl := float64(l)
		t.ks[l] = math.Sqrt(fl * (fl + 1) / ((fl + 2) * (fl - 1)))
		t.inv[l] = 1 / t.ks[l]
	}
	return t, nil
}

// Nside returns the map resolution of t.
func (t *Transform) Nside() int { return t.eng.Nside() }

// Lmax returns the harmonic truncation of t.
func (t *Transform) Lmax() int { return t.eng.Lmax() }

func (t *Transform) check(maps ...*healpix.Map) error {
	if err := healpix.Check(maps...); err != nil {
		return err
	}
	if maps[0].Nside != t.Nside() {
		return fmt.Errorf("%w: map nside %d, transform nside %d",
			healpix.ErrResolutionMismatch, maps[0].Nside, t.Nside())
	}
	return nil
}

// ToConvergence reconstructs E and B mode convergence from shear.
func (t *Transform) ToConvergence(s ShearPair) (ConvergencePair, error) {
	if err := t.check(s.G1, s.G2); err != nil {
		return ConvergencePair{}, err
	}
	almE, almB, err := t.eng.Map2AlmSpin(s.G1, s.G2, t.iter)
	if err != nil {
		return ConvergencePair{}, err
	}
	almE.ScaleL(t.ks)
	almB.ScaleL(t.ks)
	return ConvergencePair{E: t.eng.Alm2Map(almE), B: t.eng.Alm2Map(almB)}, nil
}

// ToShear is the inverse of ToConvergence.
func (t *Transform) ToShear(k ConvergencePair) (ShearPair, error) {
	if err := t.check(k.E, k.B); err != nil {
		return ShearPair{}, err
	}
	almE, err := t.eng.Map2Alm(k.E, t.iter)
	if err != nil {
		return ShearPair{}, err
	}
	almB, err := t.eng.Map2Alm(k.B, t.iter)
	if err != nil {
		return ShearPair{}, err
	}
	almE.ScaleL(t.inv)
	almB.ScaleL(t.inv)
	g1, g2 := t.eng.Alm2MapSpin(almE, almB)
	return ShearPair{G1: g1, G2: g2}, nil
}

// GaussianFilter smooths m with a Gaussian beam of standard deviation sigma
// in pixels, that is in units of healpix.Resolution.  For |sigma| <= .001 it
// returns an unsmoothed copy.
func (t *Transform) GaussianFilter(m *healpix.Map, sigma float64) (*healpix.Map, error) {
	if err := t.check(m); err != nil {
		return nil, err
	}
	if math.Abs(sigma) <= .001 {
		return m.Clone(), nil
	}
	alm, err := t.eng.Map2Alm(m, t.iter)
	if err != nil {
		return nil, err
	}
	alm.ScaleL(Beam(t.Lmax(), sigma*healpix.Resolution(t.Nside()).Rad()))
	return t.eng.Alm2Map(alm), nil
}

// Beam returns the harmonic window exp(-l(l+1)σ²/2) of a Gaussian with
// standard deviation sigma radians.
func Beam(lmax int, sigma float64) []float64 {
	b := make([]float64, lmax+1)
	for l := range b {
		b[l] = math.Exp(-float64(l*(l+1)) * sigma * sigma / 2)
	}
	return b
}

// ReducedShear converts shear to reduced shear in place, g = γ / (1 - κE).
//
// Where |1 - κE| is below the floor of t the denominator is replaced by
// the floor with the sign kept, zero counting as positive.  Non-finite
// results are set to zero.  The number of pixels so treated is returned.
// Kappa is not modified.
func (t *Transform) ReducedShear(shear ShearPair, kappa ConvergencePair) (int, error) {
	if err := t.check(shear.G1, shear.G2, kappa.E, kappa.B); err != nil {
		return 0, err
	}
	g1, g2 := shear.G1.Pix, shear.G2.Pix
	n := 0
	for p, k := range kappa.E.Pix {
		den := 1 - k
		bad := false
		if math.Abs(den) < t.floor {
			den = math.Copysign(t.floor, den)
			bad = true
		}
		g1[p] /= den
		g2[p] /= den
		if !finite(g1[p]) || !finite(g2[p]) {
			g1[p], g2[p] = 0, 0
			bad = true
		}
		if bad {
			n++
		}
	}
	return n, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
