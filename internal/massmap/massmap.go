// Public domain.

// Package massmap turns shear catalogs into shear and convergence maps on
// the sphere.
//
// Shear maps follow the HEALPix polarization convention: G1 and G2 take the
// places of Q and U, so a field g1 + i g2 is analyzed into E and B modes the
// way a Q, U pair is.  Convergence is related to those modes by the spherical
// Kaiser-Squires factor
//
//	κ_lm = sqrt(l(l+1) / ((l+2)(l-1))) {E,B}_lm,   l >= 2.
package massmap

import (
	"errors"
	"fmt"

	"github.com/soniakeys/sphmass/healpix"
)

// ErrNumericDegeneracy marks pixels where a division was clamped or a
// non-finite result replaced.  It is not fatal.
var ErrNumericDegeneracy = errors.New("numeric degeneracy")

// Degeneracy reports the pixels affected by one operation.  It wraps
// ErrNumericDegeneracy.
type Degeneracy struct {
	Op     string
	Pixels int
}

func (d *Degeneracy) Error() string {
	return fmt.Sprintf("%s: %v in %d pixels", d.Op, ErrNumericDegeneracy, d.Pixels)
}

func (d *Degeneracy) Unwrap() error { return ErrNumericDegeneracy }

// ShearPair is a shear field g1 + i g2.
type ShearPair struct {
	G1, G2 *healpix.Map
}

// NewShearPair allocates a zeroed pair.
func NewShearPair(nside int) ShearPair {
	return ShearPair{G1: healpix.NewMap(nside), G2: healpix.NewMap(nside)}
}

// Check verifies both components are well formed and share a resolution.
func (s ShearPair) Check() error {
	return healpix.Check(s.G1, s.G2)
}

// Clone returns a copy sharing no storage with s.
func (s ShearPair) Clone() ShearPair {
	return ShearPair{G1: s.G1.Clone(), G2: s.G2.Clone()}
}

// ConvergencePair holds the E mode (lensing) and B mode (systematics and
// noise) convergence.
type ConvergencePair struct {
	E, B *healpix.Map
}

// Check verifies both maps are well formed and share a resolution.
func (k ConvergencePair) Check() error {
	return healpix.Check(k.E, k.B)
}

// Field is a binned catalog: mean shear per pixel and galaxy counts.
type Field struct {
	Shear ShearPair
	Count *healpix.Map
}
