// Public domain.

// Package sht implements scalar and spin-2 spherical harmonic transforms
// between RING ordered maps and harmonic coefficients.
package sht

// Alm holds harmonic coefficients a_lm for 0 <= m <= l <= Lmax.  Coefficients
// for negative m follow from a_l,-m = (-1)^m conj(a_lm) and are not stored.
//
// Storage is m-major: all l for m = 0, then all l for m = 1, and so on.
type Alm struct {
	Lmax int
	C    []complex128
}

// NewAlm allocates zeroed coefficients up to lmax.
func NewAlm(lmax int) *Alm {
	return &Alm{Lmax: lmax, C: make([]complex128, (lmax+1)*(lmax+2)/2)}
}

// Index returns the position of a_lm in C.
func (a *Alm) Index(l, m int) int {
	return m*(2*a.Lmax+1-m)/2 + l
}

// At returns a_lm.
func (a *Alm) At(l, m int) complex128 {
	return a.C[a.Index(l, m)]
}

// Set sets a_lm.
func (a *Alm) Set(l, m int, v complex128) {
	a.C[a.Index(l, m)] = v
}

// Clone returns an independent copy of a.
func (a *Alm) Clone() *Alm {
	return &Alm{Lmax: a.Lmax, C: append([]complex128(nil), a.C...)}
}

// Add adds b to a in place.  Both must share Lmax.
func (a *Alm) Add(b *Alm) {
	for i, v := range b.C {
		a.C[i] += v
	}
}

// ScaleL multiplies every a_lm by f[l].  len(f) must be at least Lmax+1.
func (a *Alm) ScaleL(f []float64) {
	for m := 0; m <= a.Lmax; m++ {
		i := a.Index(m, m)
		for l := m; l <= a.Lmax; l++ {
			a.C[i] *= complex(f[l], 0)
			i++
		}
	}
}
