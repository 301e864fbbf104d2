// Public domain.

package params_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/sphmass/internal/massmap"
	"github.com/soniakeys/sphmass/internal/params"
)

func TestDefaultValid(t *testing.T) {
	p := params.Default()
	require.NoError(t, p.Validate())
	assert.True(t, p.SmoothE)
	assert.False(t, p.SmoothB)
	assert.Equal(t, massmap.DefaultIterations, p.Iterations)
	assert.Equal(t, "rotate", p.Resampling)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nside: 64
n_resamples: 25
sigma_gauss: 2.5
smooth_b: true
resampling: shuffle
repeatable: true
seed: 42
`), 0o644))
	p, err := params.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, p.Nside)
	assert.Equal(t, 25, p.NResamples)
	assert.Equal(t, 2.5, p.SigmaGauss)
	assert.True(t, p.SmoothE, "default kept")
	assert.True(t, p.SmoothB)
	assert.Equal(t, "shuffle", p.Resampling)
	assert.True(t, p.Repeatable)
	assert.Equal(t, uint64(42), p.Seed)
	assert.Equal(t, 1e-3, p.ReducedShearFloor)

	c := p.TransformConfig()
	assert.Equal(t, 64, c.Nside)
	assert.Equal(t, 10, c.Iterations)

	_, err = params.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeEmpty(t *testing.T) {
	p, err := params.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, params.Default(), p)
}

func TestDecodeUnknownKey(t *testing.T) {
	_, err := params.Decode(strings.NewReader("nsides: 64\n"))
	assert.ErrorIs(t, err, params.ErrInvalidParameters)
}

func TestValidateRejects(t *testing.T) {
	for name, f := range map[string]func(p *params.Spherical){
		"nside not pow2":  func(p *params.Spherical) { p.Nside = 100 },
		"nside zero":      func(p *params.Spherical) { p.Nside = 0 },
		"nside too large": func(p *params.Spherical) { p.Nside = 1 << 14 },
		"lmax one":        func(p *params.Spherical) { p.Lmax = 1 },
		"lmax too large":  func(p *params.Spherical) { p.Nside = 8; p.Lmax = 33 },
		"iterations":      func(p *params.Spherical) { p.Iterations = -1 },
		"workers":         func(p *params.Spherical) { p.Workers = -2 },
		"resampling":      func(p *params.Spherical) { p.Resampling = "bootstrap" },
		"floor":           func(p *params.Spherical) { p.ReducedShearFloor = 0 },
	} {
		p := params.Default()
		f(&p)
		assert.ErrorIs(t, p.Validate(), params.ErrInvalidParameters, name)
	}
	p := params.Default()
	p.Nside = 8
	p.Lmax = 32
	assert.NoError(t, p.Validate())
}

// The power of two rule is enforced by its registered tag.
func TestPow2Tag(t *testing.T) {
	p := params.Default()
	p.Nside = 48
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'pow2' tag")
	p.Nside = 64
	assert.NoError(t, p.Validate())
}

func TestNormalize(t *testing.T) {
	for _, n := range []int{-5, 0} {
		p := params.Default()
		p.NResamples = n
		assert.True(t, p.Normalize())
		assert.Equal(t, 1, p.NResamples)
		assert.NoError(t, p.Validate())
	}
	p := params.Default()
	p.NResamples = 1
	assert.False(t, p.Normalize())
	assert.Equal(t, 1, p.NResamples)
}
