// Public domain.

package massmap

import (
	"fmt"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/catalog"
)

// Builder bins catalogs into maps of resolution Nside.
type Builder struct {
	Nside int
}

// Build bins cat.  Each pixel gets the weighted mean shear of the galaxies
// falling in it; pixels without galaxies, or whose weights sum to zero, are
// zero.  Count holds the number of galaxies per pixel regardless of weight.
//
// Cat is validated first and an invalid catalog gives an error wrapping
// catalog.ErrInvalidCatalog.
func (b Builder) Build(cat *catalog.Catalog) (*Field, error) {
	if !healpix.ValidNside(b.Nside) {
		return nil, fmt.Errorf("build: invalid nside %d", b.Nside)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	f := &Field{
		Shear: NewShearPair(b.Nside),
		Count: healpix.NewMap(b.Nside),
	}
	wsum := make([]float64, healpix.Npix(b.Nside))
	g1, g2 := f.Shear.G1.Pix, f.Shear.G2.Pix
	for i := range cat.RA {
		p := healpix.Vec2Pix(b.Nside, position(cat.RA[i], cat.Dec[i]))
		w := 1.
		if cat.Weight != nil {
			w = cat.Weight[i]
		}
		g1[p] += w * cat.G1[i]
		g2[p] += w * cat.G2[i]
		wsum[p] += w
		f.Count.Pix[p]++
	}
	for p, w := range wsum {
		if w > 0 {
			g1[p] /= w
			g2[p] /= w
		} else {
			g1[p], g2[p] = 0, 0
		}
	}
	return f, nil
}

// position returns the unit vector toward ra, dec given in degrees.
func position(ra, dec float64) coord.Cart {
	sr, cr := math.Sincos(unit.AngleFromDeg(ra).Rad())
	sd, cd := math.Sincos(unit.AngleFromDeg(dec).Rad())
	return coord.Cart{X: cd * cr, Y: cd * sr, Z: sd}
}
