// Public domain.

// Package mcmaps produces a denoised shear map from a catalog and a set of
// Monte Carlo realizations combining it with resampled noise.
package mcmaps

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/catalog"
	"github.com/soniakeys/sphmass/internal/mapio"
	"github.com/soniakeys/sphmass/internal/massmap"
	"github.com/soniakeys/sphmass/internal/params"
)

// Map names and labels handed to the Writer.  A realization is written
// under RealizationName with the combined shear as GAMMA1 and GAMMA2 and
// the convergence of its noise as KAPPA_E and KAPPA_B.
const (
	NameDenoised    = "denoised"
	NameConvergence = "convergence"
	NameCount       = "count"

	LabelGamma1 = "GAMMA1"
	LabelGamma2 = "GAMMA2"
	LabelKappaE = "KAPPA_E"
	LabelKappaB = "KAPPA_B"
	LabelCount  = "COUNT"
)

// RealizationName returns the Writer name of realization index.
func RealizationName(index int) string {
	return fmt.Sprintf("mc_%d", index)
}

// Orchestrator runs the denoised path and the noise realizations for one
// parameter set.
type Orchestrator struct {
	p      params.Spherical
	tr     *massmap.Transform
	rs     catalog.Resampler
	log    *zap.Logger
	w      mapio.Writer
	retain bool
	runID  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.  The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithWriter sets where maps are written.  Without a Writer, results are
// only returned.
func WithWriter(w mapio.Writer) Option {
	return func(o *Orchestrator) { o.w = w }
}

// WithoutRetention drops realization maps from the Result once they are
// written, keeping only their indexes.  Use with a Writer on large runs.
func WithoutRetention() Option {
	return func(o *Orchestrator) { o.retain = false }
}

// WithRunID sets the run identifier.  The default is a random UUID.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// New validates p and prepares a run.  NResamples below one is raised to
// one and logged.
func New(p params.Spherical, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{log: zap.NewNop(), retain: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	o.log = o.log.With(zap.String("run_id", o.runID))
	if n := p.NResamples; p.Normalize() {
		o.log.Warn("number of resamples raised to one", zap.Int("requested", n))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Workers == 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	method, err := catalog.ParseMethod(p.Resampling)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", params.ErrInvalidParameters, err)
	}
	tr, err := massmap.NewTransform(p.TransformConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", params.ErrInvalidParameters, err)
	}
	o.p = p
	o.tr = tr
	o.rs = catalog.Resampler{Method: method}
	return o, nil
}

// RunID returns the identifier given to results and written maps.
func (o *Orchestrator) RunID() string { return o.runID }

// Params returns the normalized parameters of the run.
func (o *Orchestrator) Params() params.Spherical { return o.p }

// Result holds the products of a run.
type Result struct {
	RunID string
	// Denoised is the smoothed reduced shear.
	Denoised massmap.ShearPair
	// Convergence is the smoothed convergence Denoised was derived from.
	Convergence massmap.ConvergencePair
	// Count is the number of galaxies per pixel.
	Count *healpix.Map
	// Realizations are in index order.  A cancelled run holds those
	// completed.
	Realizations []Realization
	// Failures are realizations that did not complete.
	Failures []RealizationError
	// Warnings are non-fatal conditions, such as *massmap.Degeneracy.
	Warnings []error
}

// Realization is one Monte Carlo sample.
type Realization struct {
	Index int
	// Noise is the shear of the resampled catalog.
	Noise massmap.ShearPair
	// NoiseConvergence is the convergence reconstructed from Noise.
	NoiseConvergence massmap.ConvergencePair
	// Combined is Noise composed with the denoised reduced shear.
	Combined massmap.ShearPair
}

// RealizationError records a failed realization.
type RealizationError struct {
	Index int
	Err   error
}

func (e RealizationError) Error() string {
	return fmt.Sprintf("realization %d: %v", e.Index, e.Err)
}

func (e RealizationError) Unwrap() error { return e.Err }

// finish tells a Finisher that name is complete.
func (o *Orchestrator) finish(name string) error {
	if f, ok := o.w.(mapio.Finisher); ok {
		return f.Finish(name)
	}
	return nil
}

// write hands labeled maps to the Writer, if any, and finishes name.
func (o *Orchestrator) write(name string, labeled ...labeledMap) error {
	if o.w == nil {
		return nil
	}
	var errs []error
	for _, lm := range labeled {
		if err := o.w.WriteMap(name, lm.label, lm.m); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", name, lm.label, err))
			break
		}
	}
	errs = append(errs, o.finish(name))
	return errors.Join(errs...)
}

type labeledMap struct {
	label string
	m     *healpix.Map
}
