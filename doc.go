/*
Command sphmass computes weak lensing mass maps on the sphere and Monte Carlo
realizations of their noise.

Contents

  Program overview
  Command line usage
  Parameter file
  File formats
  Algorithm outline


Program overview

Input is a shear catalog: galaxy positions with measured shears and
optionally weights.  Output is a set of HEALPix maps in RING ordering,

  denoised.fits     smoothed reduced shear, tables GAMMA1 and GAMMA2
  convergence.fits  convergence it was derived from, KAPPA_E and KAPPA_B
  count.fits        galaxies per pixel, COUNT
  mc_<n>.fits       realization n, GAMMA1 and GAMMA2, and the convergence
                    of its noise, KAPPA_E and KAPPA_B

Each realization is the denoised reduced shear composed with the shear of
a noise catalog, made from the input by randomizing shears while keeping
positions.  Realizations taken together sample the noise of the denoised
map and can be fed to downstream statistics such as peak counts.

Sample run:

  sphmass run --nside 256 -n 100 --sigma 2 -o maps cat.fits

logs progress as JSON on stderr and finishes with a line like

  run 0b3c...: 100 realizations, 0 failed, 0 warnings, maps in maps


Command line usage

  sphmass run [flags] <catalog>    compute maps
  sphmass params [-c file]         display effective parameters as YAML
  sphmass stat <file> <label>...   summarize written maps
  sphmass version                  display version and copyright

Flags of run override values of the parameter file given with -c:

  -c, --config        YAML parameter file
  -o, --out           output directory, default current directory
      --nside         map resolution
  -n, --resamples     number of realizations
      --sigma         smoothing scale in pixels
      --seed          seed for repeatable runs
      --repeatable    seed realizations from --seed
  -w, --workers       worker goroutines, default GOMAXPROCS
      --resampling    rotate or shuffle
      --smooth-b      smooth the B mode too

Global flags -v and -q select debug logging or none.  Interrupting a run
stops starting realizations; those completed are kept.


Parameter file

A YAML mapping.  Keys left out take the defaults shown:

  nside: 256
  n_resamples: 10            # values below 1 are taken as 1
  sigma_gauss: 0             # pixels; |sigma| <= .001 means no smoothing
  lmax: 0                    # 0 means 3*nside-1, at most 4*nside
  iterations: 10             # Jacobi refinements of map analysis
  smooth_e: true
  smooth_b: false
  workers: 0
  seed: 3
  repeatable: false
  resampling: rotate         # or shuffle
  reduced_shear_floor: 0.001

Unknown keys are an error.


File formats

Catalogs are FITS binary tables or text.  In a FITS file the first binary
table is read, with columns RA and DEC in degrees, G1 or GAMMA1, G2 or
GAMMA2, and WEIGHT if present.  Text catalogs have whitespace separated
columns ra dec g1 g2 and an optional fifth weight column.  Text following #
is ignored.

Output maps are FITS files holding one binary table per label.  Each table
has a single double precision column of 12*nside² rows and the keywords
PIXTYPE = HEALPIX, ORDERING = RING, NSIDE, FIRSTPIX, LASTPIX and RUNID, the
identifier of the run shared by all its files.


Algorithm outline

1.  Galaxies are binned by pixel.  A pixel gets the weighted mean shear of
its galaxies, or zero when it has none.

2.  The shear map g1 + i g2 is analyzed as a spin-2 field, with g1 and g2 in
the roles of the Stokes Q and U of the HEALPix polarization convention.
The E and B coefficients are scaled by the spherical Kaiser-Squires factor
sqrt(l(l+1)/((l+2)(l-1))), with l < 2 removed, and synthesized into
convergence maps.  Analysis refines its quadrature estimate by Jacobi
iterations.

3.  The E mode convergence is smoothed with a Gaussian of sigma_gauss
pixels, B only when smooth_b is set.  Shear is recomputed from the smoothed
convergence and converted to reduced shear g = γ/(1-κ), clamping |1-κ| to at
least reduced_shear_floor.

4.  For each realization a noise catalog is made.  Rotate turns each shear
by a random angle, keeping its magnitude; shuffle permutes shears among
galaxies.  The noise catalog goes through steps 1 and 2 without smoothing
or reduced shear correction.

5.  The noise shear z_n is composed with the denoised reduced shear z_d
pixel by pixel as (z_n + z_d)/(1 + conj(z_d) z_n).  Pixels where this
cannot be computed are set to zero and reported as warnings.

Realizations run concurrently on a pool of workers but results are
delivered and written in index order.  With repeatable set, realization n
always draws the same random numbers whatever the number of workers.

-------------
Public domain.
*/
package main
