// Public domain.

// Package smprog is the sphmass command.
package smprog

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/sphmass/internal/catalog"
	"github.com/soniakeys/sphmass/internal/mapio"
	"github.com/soniakeys/sphmass/internal/mcmaps"
	"github.com/soniakeys/sphmass/internal/params"
)

const versionString = "sphmass version 0.1"
const copyrightString = "Public domain."

// Main runs the command with os.Args, terminating through exit on error.
func Main() {
	defer exit.Handler()
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		exit.Log(err)
	}
}

// program holds state shared by the commands of one invocation.
type program struct {
	out     io.Writer
	verbose bool
	quiet   bool
	log     *zap.Logger
}

// NewRootCmd returns the command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	pg := &program{out: out, log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "sphmass",
		Short: "Spherical weak lensing mass maps with Monte Carlo noise",
		Long: `sphmass bins a shear catalog on a HEALPix sphere, reconstructs E and B
mode convergence, and produces Monte Carlo realizations of the denoised shear
combined with resampled shape noise.

For full documentation:
   go doc github.com/soniakeys/sphmass`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if pg.quiet {
				return nil
			}
			config := zap.NewProductionConfig()
			if pg.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := config.Build()
			if err != nil {
				return err
			}
			pg.log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = pg.log.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&pg.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&pg.quiet, "quiet", "q", false, "no logging")
	root.AddCommand(pg.runCmd(), pg.paramsCmd(), pg.statCmd(), pg.versionCmd())
	return root
}

func (pg *program) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version and copyright",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(pg.out, versionString)
			fmt.Fprintln(pg.out, copyrightString)
		},
	}
}

// runFlags are the command line overrides of a parameter file.
type runFlags struct {
	config     string
	outDir     string
	nside      int
	resamples  int
	sigma      float64
	seed       uint64
	workers    int
	repeatable bool
	resampling string
	smoothB    bool
}

func (pg *program) runCmd() *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] <catalog>",
		Short: "Compute denoised maps and noise realizations",
		Long: `Run reads a catalog, either a FITS binary table (.fits, .fit, .fts) or
whitespace separated text columns ra dec g1 g2 [weight], with "-" for text
on stdin.  Maps are written as FITS files to the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rf.params(cmd)
			if err != nil {
				return err
			}
			cat, err := readCatalog(args[0])
			if err != nil {
				return err
			}
			return pg.run(cmd.Context(), p, cat, rf.outDir)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&rf.config, "config", "c", "", "YAML parameter file")
	f.StringVarP(&rf.outDir, "out", "o", ".", "output directory")
	f.IntVar(&rf.nside, "nside", 0, "map resolution, a power of two")
	f.IntVarP(&rf.resamples, "resamples", "n", 0, "number of noise realizations")
	f.Float64Var(&rf.sigma, "sigma", 0, "smoothing sigma in pixels")
	f.Uint64Var(&rf.seed, "seed", 0, "random seed for repeatable runs")
	f.IntVarP(&rf.workers, "workers", "w", 0, "worker goroutines (default GOMAXPROCS)")
	f.BoolVar(&rf.repeatable, "repeatable", false, "seed realizations from --seed")
	f.StringVar(&rf.resampling, "resampling", "", "noise method, rotate or shuffle")
	f.BoolVar(&rf.smoothB, "smooth-b", false, "smooth the B mode as well as E")
	return cmd
}

// params loads the parameter file, if any, and applies flags set on the
// command line.
func (rf *runFlags) params(cmd *cobra.Command) (params.Spherical, error) {
	p := params.Default()
	if rf.config != "" {
		var err error
		if p, err = params.Load(rf.config); err != nil {
			return p, err
		}
	}
	f := cmd.Flags()
	if f.Changed("nside") {
		p.Nside = rf.nside
	}
	if f.Changed("resamples") {
		p.NResamples = rf.resamples
	}
	if f.Changed("sigma") {
		p.SigmaGauss = rf.sigma
	}
	if f.Changed("seed") {
		p.Seed = rf.seed
	}
	if f.Changed("workers") {
		p.Workers = rf.workers
	}
	if f.Changed("repeatable") {
		p.Repeatable = rf.repeatable
	}
	if f.Changed("resampling") {
		p.Resampling = rf.resampling
	}
	if f.Changed("smooth-b") {
		p.SmoothB = rf.smoothB
	}
	return p, nil
}

func readCatalog(path string) (*catalog.Catalog, error) {
	if path == "-" {
		return catalog.ReadText(os.Stdin)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return catalog.ReadFITS(path, catalog.Columns{})
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return catalog.ReadText(f)
}

func (pg *program) run(ctx context.Context, p params.Spherical, cat *catalog.Catalog, outDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	w, err := mapio.NewFITSWriter(outDir, runID)
	if err != nil {
		return err
	}
	o, err := mcmaps.New(p,
		mcmaps.WithLogger(pg.log),
		mcmaps.WithRunID(runID),
		mcmaps.WithWriter(w),
		mcmaps.WithoutRetention())
	if err != nil {
		return err
	}
	res, runErr := o.Run(ctx, cat)
	if err := w.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if res != nil {
		fmt.Fprintf(pg.out, "run %s: %d realizations, %d failed, %d warnings, maps in %s\n",
			res.RunID, len(res.Realizations), len(res.Failures), len(res.Warnings), outDir)
		for _, w := range res.Warnings {
			fmt.Fprintln(pg.out, "warning:", w)
		}
		for _, f := range res.Failures {
			fmt.Fprintln(pg.out, "failed:", f)
		}
	}
	if runErr != nil {
		return runErr
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d realizations failed",
			len(res.Failures), len(res.Failures)+len(res.Realizations))
	}
	return nil
}

func (pg *program) paramsCmd() *cobra.Command {
	var config string
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Display effective parameters as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params.Default()
			if config != "" {
				var err error
				if p, err = params.Load(config); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(pg.out)
			defer enc.Close()
			return enc.Encode(p)
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "YAML parameter file")
	return cmd
}
