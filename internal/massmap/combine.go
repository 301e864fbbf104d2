// Public domain.

package massmap

import "github.com/soniakeys/sphmass/healpix"

// minCombineDen is the smallest |1 + conj(z_d) z_n|² accepted by Combine.
const minCombineDen = 1e-12

// Combine composes a denoised reduced shear with a noise shear pixel by
// pixel, as the composition law of reduced shear with intrinsic ellipticity:
//
//	out = (z_n + z_d) / (1 + conj(z_d) z_n)
//
// Pixels where the denominator vanishes or the result is not finite are set
// to zero and counted.  The result is a new pair.
func Combine(denoised, noise ShearPair) (ShearPair, int, error) {
	if err := healpix.Check(denoised.G1, denoised.G2, noise.G1, noise.G2); err != nil {
		return ShearPair{}, 0, err
	}
	out := NewShearPair(denoised.G1.Nside)
	n := 0
	for p := range out.G1.Pix {
		d1, d2 := denoised.G1.Pix[p], denoised.G2.Pix[p]
		n1, n2 := noise.G1.Pix[p], noise.G2.Pix[p]
		r1 := 1 + d1*n1 + d2*n2
		i1 := d1*n2 - d2*n1
		r2 := n1 + d1
		i2 := n2 + d2
		den := r1*r1 + i1*i1
		if den < minCombineDen {
			n++
			continue
		}
		o1 := (r2*r1 + i2*i1) / den
		o2 := (i2*r1 - r2*i1) / den
		if !finite(o1) || !finite(o2) {
			n++
			continue
		}
		out.G1.Pix[p], out.G2.Pix[p] = o1, o2
	}
	return out, n, nil
}
