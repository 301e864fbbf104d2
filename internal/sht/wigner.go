// Public domain.

package sht

import "math"

// values below exp(logTiny) are taken as zero.
const logTiny = -690.

// rescaling step used while a recurrence runs below logTiny
const (
	bigVal    = 1e100
	logBigVal = 230.25850929940458 // ln(1e100)
)

// wigner fills d[l] with the Wigner small-d function d^l_{m,mp}(theta) for
// l <= lmax.  Entries below max(m, |mp|) are zero.  M must be >= 0.
//
// Values run on the stable three term recurrence in l.  The starting value
// is computed in log space and, when it would underflow, the recurrence runs
// on a scaled copy until it climbs back into range.
func wigner(d []float64, lmax, m, mp int, theta float64) {
	for l := range d[:lmax+1] {
		d[l] = 0
	}
	amp := mp
	if amp < 0 {
		amp = -amp
	}
	l0 := m
	if amp > l0 {
		l0 = amp
	}
	if l0 > lmax {
		return
	}
	lc := math.Log(math.Cos(theta / 2))
	ls := math.Log(math.Sin(theta / 2))
	logv, neg := startValue(m, mp, lc, ls)
	cur, scale := 1., 0.
	if logv < logTiny {
		scale = logv
	} else {
		cur = math.Exp(logv)
	}
	if neg {
		cur = -cur
	}
	if scale == 0 {
		d[l0] = cur
	}
	cth := math.Cos(theta)
	fm, fmp := float64(m), float64(mp)
	fm2, fmp2 := fm*fm, fmp*fmp
	prev := 0.
	for j := l0; j < lmax; j++ {
		var next float64
		if j == 0 { // only when m = mp = 0
			next = cth * cur
		} else {
			fj := float64(j)
			fj1 := fj + 1
			a := fj * math.Sqrt((fj1*fj1-fm2)*(fj1*fj1-fmp2))
			b := (2*fj + 1) * (fj*fj1*cth - fm*fmp)
			c := fj1 * math.Sqrt((fj*fj-fm2)*(fj*fj-fmp2))
			next = (b*cur - c*prev) / a
		}
		prev, cur = cur, next
		if scale != 0 {
			switch ac := math.Abs(cur); {
			case ac > 0 && math.Log(ac)+scale > logTiny:
				// exp(scale) alone would underflow
				v := math.Copysign(math.Exp(math.Log(ac)+scale), cur)
				prev = v * (prev / cur)
				cur = v
				scale = 0
			case ac > bigVal:
				cur /= bigVal
				prev /= bigVal
				scale += logBigVal
			}
		}
		if scale == 0 {
			d[j+1] = cur
		}
	}
}

// startValue returns log|d^l0_{m,mp}| and its sign at l0 = max(m, |mp|),
// given the logs of cos(theta/2) and sin(theta/2).
func startValue(m, mp int, lc, ls float64) (logv float64, neg bool) {
	switch {
	case m >= mp && m >= -mp:
		logv = .5*(lgamma(2*m)-lgamma(m+mp)-lgamma(m-mp)) +
			float64(m+mp)*lc + float64(m-mp)*ls
		neg = (m-mp)&1 == 1
	case mp > 0:
		logv = .5*(lgamma(2*mp)-lgamma(mp+m)-lgamma(mp-m)) +
			float64(mp+m)*lc + float64(mp-m)*ls
	default:
		j := -mp
		logv = .5*(lgamma(2*j)-lgamma(j+m)-lgamma(j-m)) +
			float64(j-m)*lc + float64(j+m)*ls
		neg = (m+j)&1 == 1
	}
	return
}

// lgamma returns ln(n!).
func lgamma(n int) float64 {
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}
