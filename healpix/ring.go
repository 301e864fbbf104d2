// Public domain.

package healpix

import "math"

// Ring describes one iso-latitude ring of pixels.
type Ring struct {
	Start int     // index of the first pixel
	N     int     // number of pixels
	Z     float64 // cosine of colatitude
	Sin   float64 // sine of colatitude
	Phi0  float64 // longitude of the first pixel center, radians
}

// Rings returns the 4*nside-1 rings of a map, north to south.
func Rings(nside int) []Ring {
	n := float64(nside)
	npix := Npix(nside)
	ncap := 2 * nside * (nside - 1)
	rings := make([]Ring, 4*nside-1)
	for i := 1; i <= len(rings); i++ {
		var r Ring
		switch {
		case i < nside:
			r.N = 4 * i
			r.Start = 2 * i * (i - 1)
			r.Z = 1 - float64(i*i)/(3*n*n)
			r.Phi0 = math.Pi / float64(r.N)
		case i <= 3*nside:
			r.N = 4 * nside
			r.Start = ncap + (i-nside)*4*nside
			r.Z = float64(2*nside-i) * 2 / (3 * n)
			if (i-nside)&1 == 0 {
				r.Phi0 = math.Pi / float64(r.N)
			}
		default:
			ii := 4*nside - i
			r.N = 4 * ii
			r.Start = npix - 2*ii*(ii+1)
			r.Z = float64(ii*ii)/(3*n*n) - 1
			r.Phi0 = math.Pi / float64(r.N)
		}
		r.Sin = math.Sqrt((1 - r.Z) * (1 + r.Z))
		rings[i-1] = r
	}
	return rings
}
