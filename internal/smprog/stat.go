// Public domain.

package smprog

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/sphmass/internal/mapio"
)

// statCmd summarizes maps written by run, a quick check that a run produced
// something sensible.
func (pg *program) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <map.fits> <label>...",
		Short: "Display summary statistics of written maps",
		Long: `Stat reads the tables named by the labels, for example GAMMA1 or
KAPPA_E, from a FITS file written by run and displays the number of
non-zero pixels, mean, standard deviation, minimum and maximum.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(pg.out, "%-10s %6s %9s %12s %12s %12s %12s\n",
				"label", "nside", "nonzero", "mean", "std", "min", "max")
			for _, label := range args[1:] {
				m, runID, err := mapio.ReadFITS(args[0], label)
				if err != nil {
					return err
				}
				pg.log.Debug("map read", zap.String("label", label), zap.String("run_id", runID))
				nz := 0
				for _, v := range m.Pix {
					if v != 0 {
						nz++
					}
				}
				mean, std := stat.MeanStdDev(m.Pix, nil)
				fmt.Fprintf(pg.out, "%-10s %6d %9d %12.5g %12.5g %12.5g %12.5g\n",
					label, m.Nside, nz, mean, std, floats.Min(m.Pix), floats.Max(m.Pix))
			}
			return nil
		},
	}
}
