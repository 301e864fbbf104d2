// Public domain.

package smprog_test

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/sphmass/internal/mapio"
	"github.com/soniakeys/sphmass/internal/params"
	"github.com/soniakeys/sphmass/internal/smprog"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := smprog.NewRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sphmass version"))
}

func TestParams(t *testing.T) {
	out, err := execute(t, "-q", "params")
	require.NoError(t, err)
	var p params.Spherical
	require.NoError(t, yaml.Unmarshal([]byte(out), &p))
	assert.Equal(t, params.Default(), p)
}

// writeCatalog writes a text catalog of n galaxies on a spiral covering the
// sphere.
func writeCatalog(t *testing.T, n int) string {
	var b strings.Builder
	b.WriteString("# ra dec g1 g2\n")
	for i := 0; i < n; i++ {
		z := 1 - (2*float64(i)+1)/float64(n)
		dec := math.Asin(z) * 180 / math.Pi
		ra := math.Mod(float64(i)*137.50776405, 360)
		fmt.Fprintf(&b, "%.6f %.6f %.4f %.4f\n", ra, dec,
			.1*math.Sin(float64(i)), .1*math.Cos(float64(i)))
	}
	path := filepath.Join(t.TempDir(), "cat.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun(t *testing.T) {
	cat := writeCatalog(t, 1000)
	dir := filepath.Join(t.TempDir(), "maps")
	out, err := execute(t, "-q", "run", "--nside", "4", "-n", "3",
		"--sigma", "1", "--repeatable", "-w", "2", "-o", dir, cat)
	require.NoError(t, err)
	assert.Contains(t, out, "3 realizations, 0 failed")

	for _, name := range []string{"denoised", "convergence", "count", "mc_0", "mc_1", "mc_2"} {
		_, err := os.Stat(filepath.Join(dir, name+".fits"))
		assert.NoError(t, err, name)
	}
	m, runID, err := mapio.ReadFITS(filepath.Join(dir, "mc_2.fits"), "GAMMA2")
	require.NoError(t, err)
	assert.Equal(t, 4, m.Nside)
	assert.Contains(t, out, runID)
	k, _, err := mapio.ReadFITS(filepath.Join(dir, "mc_2.fits"), "KAPPA_E")
	require.NoError(t, err)
	assert.Equal(t, m.Npix(), k.Npix())

	out, err = execute(t, "-q", "stat", filepath.Join(dir, "count.fits"), "COUNT")
	require.NoError(t, err)
	assert.Contains(t, out, "COUNT")
}

func TestRunRejects(t *testing.T) {
	cat := writeCatalog(t, 10)
	_, err := execute(t, "-q", "run", "--nside", "5", "-o", t.TempDir(), cat)
	assert.ErrorIs(t, err, params.ErrInvalidParameters)

	_, err = execute(t, "-q", "run", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = execute(t, "-q", "run")
	assert.Error(t, err)
}
