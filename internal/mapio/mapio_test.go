// Public domain.

package mapio_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/mapio"
)

func ramp(nside int, scale float64) *healpix.Map {
	m := healpix.NewMap(nside)
	for i := range m.Pix {
		m.Pix[i] = scale * math.Sin(float64(i))
	}
	return m
}

func TestMemWriter(t *testing.T) {
	w := mapio.NewMemWriter()
	var _ mapio.Writer = w
	m := ramp(2, 1)
	require.NoError(t, w.WriteMap("mc_1", "GAMMA1", m))
	require.NoError(t, w.WriteMap("mc_0", "GAMMA2", ramp(2, 2)))
	m.Pix[0] = 99
	assert.NotEqual(t, 99., w.Map("mc_1", "GAMMA1").Pix[0], "stored map aliased")
	assert.Equal(t, []string{"mc_0", "mc_1"}, w.Names())
	assert.Nil(t, w.Map("mc_1", "GAMMA2"))

	err := w.WriteMap("bad", "X", &healpix.Map{Nside: 2, Pix: make([]float64, 3)})
	assert.ErrorIs(t, err, healpix.ErrResolutionMismatch)
}

func TestFITSRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	runID := uuid.NewString()
	w, err := mapio.NewFITSWriter(dir, runID)
	require.NoError(t, err)
	var _ mapio.Finisher = w

	g1, g2 := ramp(4, 1), ramp(4, -.5)
	require.NoError(t, w.WriteMap("mc_0", "GAMMA1", g1))
	require.NoError(t, w.WriteMap("mc_0", "GAMMA2", g2))
	require.NoError(t, w.Finish("mc_0"))
	require.NoError(t, w.Finish("mc_0"))
	require.NoError(t, w.WriteMap("count", "COUNT", ramp(2, 3)))
	require.NoError(t, w.Close())

	path := w.Path("mc_0")
	_, err = os.Stat(path)
	require.NoError(t, err)

	got, id, err := mapio.ReadFITS(path, "GAMMA2")
	require.NoError(t, err)
	assert.Equal(t, runID, id)
	assert.Equal(t, g2, got)

	got, _, err = mapio.ReadFITS(path, "GAMMA1")
	require.NoError(t, err)
	assert.Equal(t, g1, got)

	got, _, err = mapio.ReadFITS(w.Path("count"), "COUNT")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Nside)

	_, _, err = mapio.ReadFITS(path, "KAPPA_E")
	assert.ErrorIs(t, err, mapio.ErrNotFound)
}
