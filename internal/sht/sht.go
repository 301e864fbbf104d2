// Public domain.

package sht

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/sphmass/healpix"
)

// Engine transforms maps of one resolution with one harmonic truncation.
// An Engine is read-only after New and may be shared between goroutines.
//
// Scalar harmonics are the usual Y_lm with the Condon-Shortley phase.
// Spin-2 fields Q+iU follow the HEALPix polarization convention,
//
//	Q ± iU = Σ a_±2,lm ±2Y_lm,   a_±2,lm = -(E_lm ± i B_lm).
type Engine struct {
	nside, lmax int
	rings       []healpix.Ring
	theta       []float64 // colatitude per ring
	norm        []float64 // sqrt((2l+1)/4π)
	weight      float64   // quadrature weight per pixel
}

// New returns an Engine for maps of resolution nside truncated at lmax.
func New(nside, lmax int) (*Engine, error) {
	if !healpix.ValidNside(nside) {
		return nil, fmt.Errorf("sht: invalid nside %d", nside)
	}
	if lmax < 2 || lmax > 4*nside {
		return nil, fmt.Errorf("sht: lmax %d out of range for nside %d", lmax, nside)
	}
	e := &Engine{
		nside:  nside,
		lmax:   lmax,
		rings:  healpix.Rings(nside),
		norm:   make([]float64, lmax+1),
		weight: 4 * math.Pi / float64(healpix.Npix(nside)),
	}
	e.theta = make([]float64, len(e.rings))
	for i, r := range e.rings {
		e.theta[i] = math.Atan2(r.Sin, r.Z)
	}
	for l := range e.norm {
		e.norm[l] = math.Sqrt(float64(2*l+1) / (4 * math.Pi))
	}
	return e, nil
}

// Nside returns the map resolution of e.
func (e *Engine) Nside() int { return e.nside }

// Lmax returns the harmonic truncation of e.
func (e *Engine) Lmax() int { return e.lmax }

func (e *Engine) checkAlm(a ...*Alm) {
	for _, x := range a {
		if x.Lmax != e.lmax {
			panic(fmt.Sprintf("sht: alm lmax %d, engine lmax %d", x.Lmax, e.lmax))
		}
	}
}

func (e *Engine) checkMap(m ...*healpix.Map) error {
	if err := healpix.Check(m...); err != nil {
		return err
	}
	if m[0].Nside != e.nside {
		return fmt.Errorf("%w: map nside %d, transform nside %d",
			healpix.ErrResolutionMismatch, m[0].Nside, e.nside)
	}
	return nil
}

// plans caches FFTs by ring length for the duration of one transform.
// Gonum FFT values keep scratch space and are not shared between calls.
type plans map[int]*fourier.CmplxFFT

func (p plans) get(n int) *fourier.CmplxFFT {
	f, ok := p[n]
	if !ok {
		f = fourier.NewCmplxFFT(n)
		p[n] = f
	}
	return f
}

// mbin accumulates v into the FFT bin of azimuthal order m on a ring of n
// pixels.
func mbin(buf []complex128, m int, v complex128) {
	n := len(buf)
	if m %= n; m < 0 {
		m += n
	}
	buf[m] += v
}

func mcoef(coef []complex128, m int) complex128 {
	n := len(coef)
	if m %= n; m < 0 {
		m += n
	}
	return coef[m]
}

// Alm2Map synthesizes a scalar map from a.
func (e *Engine) Alm2Map(a *Alm) *healpix.Map {
	e.checkAlm(a)
	out := healpix.NewMap(e.nside)
	d := make([]float64, e.lmax+1)
	p := plans{}
	for ri, r := range e.rings {
		buf := make([]complex128, r.N)
		for m := 0; m <= e.lmax; m++ {
			wigner(d, e.lmax, m, 0, e.theta[ri])
			var f complex128
			i := a.Index(m, m)
			for l := m; l <= e.lmax; l++ {
				f += a.C[i] * complex(e.norm[l]*d[l], 0)
				i++
			}
			f *= cmplx.Rect(1, float64(m)*r.Phi0)
			mbin(buf, m, f)
			if m > 0 {
				mbin(buf, -m, cmplx.Conj(f))
			}
		}
		seq := p.get(r.N).Sequence(nil, buf)
		for j, v := range seq {
			out.Pix[r.Start+j] = real(v)
		}
	}
	return out
}

// analyze is one quadrature pass of the scalar analysis.
func (e *Engine) analyze(pix []float64) *Alm {
	a := NewAlm(e.lmax)
	d := make([]float64, e.lmax+1)
	p := plans{}
	for ri, r := range e.rings {
		buf := make([]complex128, r.N)
		for j := range buf {
			buf[j] = complex(pix[r.Start+j]*e.weight, 0)
		}
		coef := p.get(r.N).Coefficients(nil, buf)
		for m := 0; m <= e.lmax; m++ {
			g := mcoef(coef, m) * cmplx.Rect(1, -float64(m)*r.Phi0)
			wigner(d, e.lmax, m, 0, e.theta[ri])
			i := a.Index(m, m)
			for l := m; l <= e.lmax; l++ {
				a.C[i] += g * complex(e.norm[l]*d[l], 0)
				i++
			}
		}
	}
	return a
}

// Map2Alm analyzes a scalar map.  Iter Jacobi refinements are applied on top
// of the quadrature estimate, each one synthesizing the current estimate and
// analyzing the residual.
func (e *Engine) Map2Alm(m *healpix.Map, iter int) (*Alm, error) {
	if err := e.checkMap(m); err != nil {
		return nil, err
	}
	a := e.analyze(m.Pix)
	resid := make([]float64, len(m.Pix))
	for i := 0; i < iter; i++ {
		floats.SubTo(resid, m.Pix, e.Alm2Map(a).Pix)
		a.Add(e.analyze(resid))
	}
	return a, nil
}

// Alm2MapSpin synthesizes the spin-2 field (Q, U) from E and B
// coefficients.
func (e *Engine) Alm2MapSpin(almE, almB *Alm) (q, u *healpix.Map) {
	e.checkAlm(almE, almB)
	q = healpix.NewMap(e.nside)
	u = healpix.NewMap(e.nside)
	dm := make([]float64, e.lmax+1) // d^l_{m,-2}
	dp := make([]float64, e.lmax+1) // d^l_{m,2}
	p := plans{}
	for ri, r := range e.rings {
		buf := make([]complex128, r.N)
		for m := 0; m <= e.lmax; m++ {
			wigner(dm, e.lmax, m, -2, e.theta[ri])
			if m > 0 {
				wigner(dp, e.lmax, m, 2, e.theta[ri])
			}
			var fp, fn complex128
			l0 := m
			if l0 < 2 {
				l0 = 2
			}
			i := almE.Index(l0, m)
			for l := l0; l <= e.lmax; l++ {
				ce, cb := almE.C[i], almB.C[i]
				i++
				// a_2,lm
				fp -= (ce + 1i*cb) * complex(e.norm[l]*dm[l], 0)
				if m > 0 {
					// a_2,l-m times 2Y_l,-m; the (-1)^m factors cancel
					fn -= (cmplx.Conj(ce) + 1i*cmplx.Conj(cb)) *
						complex(e.norm[l]*dp[l], 0)
				}
			}
			mbin(buf, m, fp*cmplx.Rect(1, float64(m)*r.Phi0))
			if m > 0 {
				mbin(buf, -m, fn*cmplx.Rect(1, -float64(m)*r.Phi0))
			}
		}
		seq := p.get(r.N).Sequence(nil, buf)
		for j, v := range seq {
			q.Pix[r.Start+j] = real(v)
			u.Pix[r.Start+j] = imag(v)
		}
	}
	return q, u
}

// analyzeSpin is one quadrature pass of the spin-2 analysis.
func (e *Engine) analyzeSpin(qpix, upix []float64) (almE, almB *Alm) {
	ap := NewAlm(e.lmax) // a_2,lm
	an := NewAlm(e.lmax) // a_2,l-m
	dm := make([]float64, e.lmax+1)
	dp := make([]float64, e.lmax+1)
	p := plans{}
	for ri, r := range e.rings {
		buf := make([]complex128, r.N)
		for j := range buf {
			buf[j] = complex(qpix[r.Start+j]*e.weight, upix[r.Start+j]*e.weight)
		}
		coef := p.get(r.N).Coefficients(nil, buf)
		for m := 0; m <= e.lmax; m++ {
			gp := mcoef(coef, m) * cmplx.Rect(1, -float64(m)*r.Phi0)
			wigner(dm, e.lmax, m, -2, e.theta[ri])
			var gn complex128
			if m > 0 {
				gn = mcoef(coef, -m) * cmplx.Rect(1, float64(m)*r.Phi0)
				if m&1 == 1 {
					gn = -gn
				}
				wigner(dp, e.lmax, m, 2, e.theta[ri])
			}
			l0 := m
			if l0 < 2 {
				l0 = 2
			}
			i := ap.Index(l0, m)
			for l := l0; l <= e.lmax; l++ {
				ap.C[i] += gp * complex(e.norm[l]*dm[l], 0)
				if m > 0 {
					an.C[i] += gn * complex(e.norm[l]*dp[l], 0)
				}
				i++
			}
		}
	}
	almE = NewAlm(e.lmax)
	almB = NewAlm(e.lmax)
	for m := 0; m <= e.lmax; m++ {
		i := ap.Index(m, m)
		for l := m; l <= e.lmax; l++ {
			a2 := ap.C[i]
			neg := an.C[i]
			if m == 0 {
				neg = a2
			}
			// a_-2,lm = (-1)^m conj(a_2,l-m)
			am2 := cmplx.Conj(neg)
			if m&1 == 1 {
				am2 = -am2
			}
			almE.C[i] = -(a2 + am2) / 2
			almB.C[i] = 1i * (a2 - am2) / 2
			i++
		}
	}
	return
}

// Map2AlmSpin analyzes the spin-2 field (Q, U) into E and B coefficients,
// with iter Jacobi refinements.
func (e *Engine) Map2AlmSpin(q, u *healpix.Map, iter int) (almE, almB *Alm, err error) {
	if err = e.checkMap(q, u); err != nil {
		return nil, nil, err
	}
	almE, almB = e.analyzeSpin(q.Pix, u.Pix)
	rq := make([]float64, len(q.Pix))
	ru := make([]float64, len(u.Pix))
	for i := 0; i < iter; i++ {
		sq, su := e.Alm2MapSpin(almE, almB)
		floats.SubTo(rq, q.Pix, sq.Pix)
		floats.SubTo(ru, u.Pix, su.Pix)
		de, db := e.analyzeSpin(rq, ru)
		almE.Add(de)
		almB.Add(db)
	}
	return almE, almB, nil
}
