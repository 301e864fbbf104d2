// Public domain.

package sht_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/sht"
)

// iter Jacobi refinements bring band limited analysis within 1e-4.
const (
	nside = 16
	lmax  = 3*nside - 1
	iter  = 10
)


func newRand(seed uint64) *xrand.Rand {
	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(seed)
	return rnd
}

func newEngine(t *testing.T) *sht.Engine {
	e, err := sht.New(nside, lmax)
	require.NoError(t, err)
	return e
}

// randomAlm returns coefficients band limited to lband.  a_l0 are real, as
// they must be for a real map.
func randomAlm(r *xrand.Rand, lband, lmin int) *sht.Alm {
	a := sht.NewAlm(lmax)
	for m := 0; m <= lband; m++ {
		for l := m; l <= lband; l++ {
			if l < lmin {
				continue
			}
			re, im := r.NormFloat64(), r.NormFloat64()
			if m == 0 {
				im = 0
			}
			a.Set(l, m, complex(re, im))
		}
	}
	return a
}

func assertAlmNear(t *testing.T, want, got *sht.Alm, tol float64) {
	t.Helper()
	require.Equal(t, want.Lmax, got.Lmax)
	for i := range want.C {
		assert.InDelta(t, real(want.C[i]), real(got.C[i]), tol, "re %d", i)
		assert.InDelta(t, imag(want.C[i]), imag(got.C[i]), tol, "im %d", i)
	}
}

func TestNewRejects(t *testing.T) {
	_, err := sht.New(3, 8)
	assert.Error(t, err)
	_, err = sht.New(8, 1)
	assert.Error(t, err)
	e, err := sht.New(8, 23)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Nside())
	assert.Equal(t, 23, e.Lmax())
}

func TestY10(t *testing.T) {
	e := newEngine(t)
	a := sht.NewAlm(lmax)
	a.Set(1, 0, 1)
	m := e.Alm2Map(a)
	for p := 0; p < m.Npix(); p += 37 {
		theta, _ := healpix.Pix2Ang(nside, p)
		assert.InDelta(t, math.Sqrt(3/(4*math.Pi))*math.Cos(theta), m.Pix[p], 1e-12)
	}
}

// Re Y_11 = -sqrt(3/8π) sinθ cosφ, so a_11 = 1 with its implied
// a_1-1 = -1 gives twice that.
func TestY11(t *testing.T) {
	e := newEngine(t)
	a := sht.NewAlm(lmax)
	a.Set(1, 1, 1)
	m := e.Alm2Map(a)
	for p := 0; p < m.Npix(); p += 41 {
		theta, phi := healpix.Pix2Ang(nside, p)
		want := -2 * math.Sqrt(3/(8*math.Pi)) * math.Sin(theta) * math.Cos(phi)
		assert.InDelta(t, want, m.Pix[p], 1e-12)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	e := newEngine(t)
	a := randomAlm(newRand(1), 6, 0)
	got, err := e.Map2Alm(e.Alm2Map(a), iter)
	require.NoError(t, err)
	assertAlmNear(t, a, got, 1e-4)
}

func TestMap2AlmMismatch(t *testing.T) {
	e := newEngine(t)
	_, err := e.Map2Alm(healpix.NewMap(nside*2), iter)
	assert.ErrorIs(t, err, healpix.ErrResolutionMismatch)
	_, _, err = e.Map2AlmSpin(healpix.NewMap(nside), healpix.NewMap(nside/2), iter)
	assert.ErrorIs(t, err, healpix.ErrResolutionMismatch)
}

func TestAlmLmaxPanics(t *testing.T) {
	e := newEngine(t)
	assert.Panics(t, func() { e.Alm2Map(sht.NewAlm(lmax - 1)) })
}

// A pure E mode at l=2, m=0 gives Q = -sqrt(15/32π) sin²θ and U = 0.
func TestSpinConvention(t *testing.T) {
	e := newEngine(t)
	almE := sht.NewAlm(lmax)
	almE.Set(2, 0, 1)
	q, u := e.Alm2MapSpin(almE, sht.NewAlm(lmax))
	for p := 0; p < q.Npix(); p += 29 {
		theta, _ := healpix.Pix2Ang(nside, p)
		s := math.Sin(theta)
		assert.InDelta(t, -math.Sqrt(15/(32*math.Pi))*s*s, q.Pix[p], 1e-12)
		assert.InDelta(t, 0, u.Pix[p], 1e-12)
	}
	// the same mode as B swaps the roles of Q and U
	q, u = e.Alm2MapSpin(sht.NewAlm(lmax), almE)
	for p := 0; p < q.Npix(); p += 29 {
		theta, _ := healpix.Pix2Ang(nside, p)
		s := math.Sin(theta)
		assert.InDelta(t, 0, q.Pix[p], 1e-12)
		assert.InDelta(t, -math.Sqrt(15/(32*math.Pi))*s*s, u.Pix[p], 1e-12)
	}
}

func TestSpinRoundTrip(t *testing.T) {
	e := newEngine(t)
	r := newRand(2)
	almE := randomAlm(r, 6, 2)
	almB := randomAlm(r, 6, 2)
	q, u := e.Alm2MapSpin(almE, almB)
	gotE, gotB, err := e.Map2AlmSpin(q, u, iter)
	require.NoError(t, err)
	assertAlmNear(t, almE, gotE, 1e-4)
	assertAlmNear(t, almB, gotB, 1e-4)
}

// Analysis without refinement is still close for a low band signal, and
// each refinement only improves it.
func TestIterationsImprove(t *testing.T) {
	e := newEngine(t)
	a := randomAlm(newRand(3), 8, 0)
	m := e.Alm2Map(a)
	prev := math.Inf(1)
	for _, it := range []int{0, 1, 3, iter} {
		got, err := e.Map2Alm(m, it)
		require.NoError(t, err)
		worst := 0.
		for i := range a.C {
			if d := math.Abs(real(a.C[i] - got.C[i])); d > worst {
				worst = d
			}
		}
		assert.Less(t, worst, .1)
		assert.LessOrEqual(t, worst, prev)
		prev = worst
	}
}
