// Public domain.

// Package healpix implements the RING ordered equal-area pixelization of the
// sphere on which shear and convergence maps are built.
//
// A map of resolution Nside has Npix = 12*Nside² pixels arranged on
// 4*Nside-1 iso-latitude rings.  Pixel 0 is the first pixel of the
// northernmost ring, indexes increase eastward along a ring and then
// southward ring by ring.
package healpix

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// MaxNside is the largest resolution accepted.  Pixel indexes then still fit
// comfortably in an int on 32 bit platforms.
const MaxNside = 1 << 13

// ErrResolutionMismatch is returned when maps taking part in one operation
// do not share the same Nside, or when a map's pixel slice does not match
// its Nside.
var ErrResolutionMismatch = errors.New("resolution mismatch")

// Map is a real valued map in RING ordering.
type Map struct {
	Nside int
	Pix   []float64
}

// Npix returns the number of pixels at resolution nside.
func Npix(nside int) int {
	return 12 * nside * nside
}

// ValidNside reports whether nside is a usable power of two resolution.
func ValidNside(nside int) bool {
	return nside > 0 && nside <= MaxNside && nside&(nside-1) == 0
}

// NewMap allocates a zeroed map.  It panics if nside is not valid; callers
// taking nside from input validate it first.
func NewMap(nside int) *Map {
	if !ValidNside(nside) {
		panic(fmt.Sprintf("healpix: invalid nside %d", nside))
	}
	return &Map{Nside: nside, Pix: make([]float64, Npix(nside))}
}

// Npix returns the number of pixels in m.
func (m *Map) Npix() int {
	return len(m.Pix)
}

// Clone returns a copy of m that shares no storage with it.
func (m *Map) Clone() *Map {
	return &Map{Nside: m.Nside, Pix: append([]float64(nil), m.Pix...)}
}

// Check verifies that all maps are well formed and share one resolution.
func Check(maps ...*Map) error {
	nside := 0
	for i, m := range maps {
		if m == nil {
			return fmt.Errorf("%w: map %d is nil", ErrResolutionMismatch, i)
		}
		if len(m.Pix) != Npix(m.Nside) {
			return fmt.Errorf("%w: map %d has %d pixels, nside %d needs %d",
				ErrResolutionMismatch, i, len(m.Pix), m.Nside, Npix(m.Nside))
		}
		if i == 0 {
			nside = m.Nside
			continue
		}
		if m.Nside != nside {
			return fmt.Errorf("%w: nside %d and %d",
				ErrResolutionMismatch, nside, m.Nside)
		}
	}
	return nil
}

// Resolution returns the mean pixel spacing sqrt(4π/Npix).
func Resolution(nside int) unit.Angle {
	return unit.Angle(math.Sqrt(4 * math.Pi / float64(Npix(nside))))
}

// Ang2Pix returns the pixel containing colatitude theta and longitude phi,
// both in radians.
func Ang2Pix(nside int, theta, phi float64) int {
	z := math.Cos(theta)
	if math.Abs(z) > .99 {
		return loc2pix(nside, z, math.Sin(theta), phi, true)
	}
	return loc2pix(nside, z, 0, phi, false)
}

// Vec2Pix returns the pixel containing the direction of v.  V need not be
// normalized.
func Vec2Pix(nside int, v coord.Cart) int {
	r := math.Sqrt(v.Square())
	z := v.Z / r
	phi := math.Atan2(v.Y, v.X)
	if math.Abs(z) > .99 {
		return loc2pix(nside, z, math.Hypot(v.X, v.Y)/r, phi, true)
	}
	return loc2pix(nside, z, 0, phi, false)
}

// loc2pix is the RING ordering core.  sth, the sine of colatitude, is used
// near the poles where 1-|z| loses precision.
func loc2pix(nside int, z, sth, phi float64, haveSth bool) int {
	n := float64(nside)
	za := math.Abs(z)
	tt := math.Mod(phi*2/math.Pi, 4) // in [0,4)
	if tt < 0 {
		if tt += 4; tt >= 4 {
			tt = 0
		}
	}
	if za <= 2./3 { // equatorial region
		temp1 := n * (.5 + tt)
		temp2 := n * z * .75
		jp := int(temp1 - temp2) // index of ascending edge line
		jm := int(temp1 + temp2) // index of descending edge line
		ir := nside + 1 + jp - jm
		kshift := 1 - ir&1
		ip := (jp + jm - nside + kshift + 1) / 2
		ip = imod(ip, 4*nside)
		return 2*nside*(nside-1) + (ir-1)*4*nside + ip
	}
	// polar caps
	tp := tt - math.Floor(tt)
	var tmp float64
	if haveSth {
		tmp = n * sth / math.Sqrt((1+za)/3)
	} else {
		tmp = n * math.Sqrt(3*(1-za))
	}
	jp := int(tp * tmp)
	jm := int((1 - tp) * tmp)
	ir := jp + jm + 1 // ring number counted from the closest pole
	ip := imod(int(tt*float64(ir)), 4*ir)
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return Npix(nside) - 2*ir*(ir+1) + ip
}

// Pix2Ang returns colatitude and longitude in radians of the center of
// pixel p.
func Pix2Ang(nside, p int) (theta, phi float64) {
	z, phi := pix2loc(nside, p)
	return math.Acos(z), phi
}

// Pix2Vec returns the unit vector to the center of pixel p.
func Pix2Vec(nside, p int) coord.Cart {
	z, phi := pix2loc(nside, p)
	sth := math.Sqrt((1 - z) * (1 + z))
	sp, cp := math.Sincos(phi)
	return coord.Cart{X: sth * cp, Y: sth * sp, Z: z}
}

func pix2loc(nside, p int) (z, phi float64) {
	n := float64(nside)
	ncap := 2 * nside * (nside - 1)
	npix := Npix(nside)
	switch {
	case p < ncap: // north polar cap
		ir := (1 + isqrt(1+2*p)) >> 1
		iphi := p + 1 - 2*ir*(ir-1)
		z = 1 - float64(ir*ir)/(3*n*n)
		phi = (float64(iphi) - .5) * math.Pi / (2 * float64(ir))
	case p < npix-ncap: // equatorial belt
		ip := p - ncap
		ir := ip/(4*nside) + nside
		iphi := ip%(4*nside) + 1
		fodd := .5
		if (ir+nside)&1 == 1 {
			fodd = 1
		}
		z = float64(2*nside-ir) * 2 / (3 * n)
		phi = (float64(iphi) - fodd) * math.Pi / (2 * n)
	default: // south polar cap
		ip := npix - p
		ir := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*ir + 1 - (ip - 2*ir*(ir-1))
		z = float64(ir*ir)/(3*n*n) - 1
		phi = (float64(iphi) - .5) * math.Pi / (2 * float64(ir))
	}
	return
}

func imod(a, m int) int {
	if a %= m; a < 0 {
		a += m
	}
	return a
}

// isqrt is the integer square root, exact for all int arguments used here.
func isqrt(x int) int {
	r := int(math.Sqrt(float64(x) + .5))
	for r*r > x {
		r--
	}
	for (r+1)*(r+1) <= x {
		r++
	}
	return r
}
