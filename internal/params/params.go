// Public domain.

// Package params holds the run parameters of spherical mass mapping, read
// from a YAML file and validated before use.
package params

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/sphmass/healpix"
	"github.com/soniakeys/sphmass/internal/catalog"
	"github.com/soniakeys/sphmass/internal/massmap"
)

// ErrInvalidParameters is returned for parameter sets that cannot be run.
var ErrInvalidParameters = errors.New("invalid parameters")

// Spherical holds the parameters of one run.  Once validated it is treated
// as immutable and passed by value.
type Spherical struct {
	// Nside is the map resolution, a power of two.
	Nside int `yaml:"nside" validate:"pow2"`
	// NResamples is the number of noise realizations.  Values below one
	// are raised to one by Normalize.
	NResamples int `yaml:"n_resamples"`
	// SigmaGauss is the smoothing scale of the denoised map in pixels.
	SigmaGauss float64 `yaml:"sigma_gauss"`
	// Lmax is the harmonic truncation, 0 for 3*Nside-1.
	Lmax int `yaml:"lmax" validate:"eq=0|min=2"`
	// Iterations is the number of Jacobi refinements of map analysis.
	Iterations int `yaml:"iterations" validate:"gte=0,lte=20"`
	// SmoothE and SmoothB select which convergence modes are smoothed on
	// the denoised path.
	SmoothE bool `yaml:"smooth_e"`
	SmoothB bool `yaml:"smooth_b"`
	// Workers is the size of the realization worker pool, 0 for GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`
	// Seed and Repeatable make realizations reproducible.
	Seed       uint64 `yaml:"seed"`
	Repeatable bool   `yaml:"repeatable"`
	// Resampling is the noise method, "rotate" or "shuffle".
	Resampling string `yaml:"resampling" validate:"oneof=rotate shuffle"`
	// ReducedShearFloor bounds |1-κ| in the reduced shear correction.
	ReducedShearFloor float64 `yaml:"reduced_shear_floor" validate:"gt=0,lt=1"`
}

// Default returns the parameters used for anything a file leaves out.
func Default() Spherical {
	return Spherical{
		Nside:             256,
		NResamples:        10,
		Iterations:        massmap.DefaultIterations,
		SmoothE:           true,
		Seed:              3,
		Resampling:        string(catalog.Rotate),
		ReducedShearFloor: massmap.DefaultReducedShearFloor,
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("pow2", validatePow2); err != nil {
		panic(err)
	}
}

// validatePow2 accepts resolutions healpix can allocate.
func validatePow2(fl validator.FieldLevel) bool {
	return healpix.ValidNside(int(fl.Field().Int()))
}

// Normalize applies the tolerant policies: NResamples below one becomes
// one.  It reports whether anything changed.
func (p *Spherical) Normalize() bool {
	if p.NResamples < 1 {
		p.NResamples = 1
		return true
	}
	return false
}

// Validate checks p, returning an error wrapping ErrInvalidParameters.
func (p Spherical) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if p.Lmax > 4*p.Nside {
		return fmt.Errorf("%w: lmax %d above 4*nside", ErrInvalidParameters, p.Lmax)
	}
	return nil
}

// TransformConfig returns the massmap configuration of p.
func (p Spherical) TransformConfig() massmap.Config {
	return massmap.Config{
		Nside:             p.Nside,
		Lmax:              p.Lmax,
		Iterations:        p.Iterations,
		ReducedShearFloor: p.ReducedShearFloor,
	}
}

// Decode reads YAML parameters from r over Default.  Unknown keys are an
// error.  The result is not normalized or validated.
func Decode(r io.Reader) (Spherical, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return p, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return p, nil
}

// Load reads and validates a parameter file.  It does not normalize; the
// caller applies Normalize where a change can be reported.
func Load(path string) (Spherical, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spherical{}, err
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
