// Public domain.

package mcmaps

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/sphmass/internal/catalog"
	"github.com/soniakeys/sphmass/internal/massmap"
)

// golden spreads realization indexes over the seed space.
const golden = 0x9E3779B97F4A7C15

// Run produces the denoised maps from cat, then NResamples realizations on
// a pool of Workers goroutines.
//
// An invalid catalog or parameter error is returned before any realization
// starts.  A failed realization is recorded in Result.Failures and the rest
// go on.  When ctx is cancelled Run stops starting realizations and returns
// the result so far together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, cat *catalog.Catalog) (*Result, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	sn := cat.ShapeNoise()
	o.log.Info("catalog",
		zap.Int("galaxies", sn.N),
		zap.Float64("mean_g1", sn.Mean1),
		zap.Float64("mean_g2", sn.Mean2),
		zap.Float64("sigma_e", sn.Sigma()))
	res, err := o.denoise(cat)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	o.realizations(ctx, cat, res)
	o.log.Info("done",
		zap.Int("realizations", len(res.Realizations)),
		zap.Int("failures", len(res.Failures)),
		zap.Int("warnings", len(res.Warnings)))
	return res, ctx.Err()
}

func (o *Orchestrator) warn(res *Result, op string, pixels int) {
	if pixels == 0 {
		return
	}
	d := &massmap.Degeneracy{Op: op, Pixels: pixels}
	res.Warnings = append(res.Warnings, d)
	o.log.Warn("numeric degeneracy", zap.String("op", op), zap.Int("pixels", pixels))
}

// denoise builds the smoothed reduced shear and writes the denoised
// products.
func (o *Orchestrator) denoise(cat *catalog.Catalog) (*Result, error) {
	t0 := time.Now()
	f, err := massmap.Builder{Nside: o.p.Nside}.Build(cat)
	if err != nil {
		return nil, err
	}
	k, err := o.tr.ToConvergence(f.Shear)
	if err != nil {
		return nil, err
	}
	if o.p.SmoothE {
		if k.E, err = o.tr.GaussianFilter(k.E, o.p.SigmaGauss); err != nil {
			return nil, err
		}
	}
	if o.p.SmoothB {
		if k.B, err = o.tr.GaussianFilter(k.B, o.p.SigmaGauss); err != nil {
			return nil, err
		}
	}
	g, err := o.tr.ToShear(k)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: o.runID, Convergence: k, Count: f.Count}
	n, err := o.tr.ReducedShear(g, k)
	if err != nil {
		return nil, err
	}
	o.warn(res, "reduced shear", n)
	res.Denoised = g
	o.log.Info("denoised maps",
		zap.Int("nside", o.tr.Nside()),
		zap.Int("lmax", o.tr.Lmax()),
		zap.Int("pixels", f.Count.Npix()),
		zap.Duration("elapsed", time.Since(t0)))

	if err := o.write(NameDenoised,
		labeledMap{LabelGamma1, g.G1}, labeledMap{LabelGamma2, g.G2}); err != nil {
		return nil, err
	}
	if err := o.write(NameConvergence,
		labeledMap{LabelKappaE, k.E}, labeledMap{LabelKappaB, k.B}); err != nil {
		return nil, err
	}
	if err := o.write(NameCount, labeledMap{LabelCount, f.Count}); err != nil {
		return nil, err
	}
	return res, nil
}

// rand returns the random source of realization index.
func (o *Orchestrator) rand(index int) *xrand.Rand {
	rnd := xrand.New(&xrand.PCGSource{})
	seed := o.p.Seed
	if !o.p.Repeatable {
		seed = uint64(time.Now().UnixNano())
	}
	rnd.Seed(seed ^ uint64(index)*golden)
	return rnd
}

type task struct {
	index int
	rch   chan outcome
}

type outcome struct {
	r         Realization
	combineDg int
	err       error
	cancelled bool
}

// realize runs one realization: resample, bin, reconstruct, combine.
func (o *Orchestrator) realize(ctx context.Context, cat *catalog.Catalog,
	denoised massmap.ShearPair, index int) (out outcome) {
	if ctx.Err() != nil {
		out.cancelled = true
		return
	}
	out.r.Index = index
	noisy := o.rs.Resample(cat, o.rand(index))
	f, err := massmap.Builder{Nside: o.p.Nside}.Build(noisy)
	if err != nil {
		out.err = err
		return
	}
	if out.r.NoiseConvergence, err = o.tr.ToConvergence(f.Shear); err != nil {
		out.err = err
		return
	}
	out.r.Noise = f.Shear
	out.r.Combined, out.combineDg, out.err = massmap.Combine(denoised, f.Shear)
	return
}

// realizations runs the worker pool and collects outcomes into res in index
// order.
func (o *Orchestrator) realizations(ctx context.Context, cat *catalog.Catalog, res *Result) {
	n := o.p.NResamples
	workers := o.p.Workers
	if workers > n {
		workers = n
	}
	o.log.Info("starting realizations",
		zap.Int("realizations", n), zap.Int("workers", workers))

	// tickets keeps result channels in dispatch order.  it is buffered so a
	// fast worker can drop off its outcome without waiting on workers ahead
	// of it.
	tasks := make(chan task)
	tickets := make(chan chan outcome, workers*2)
	var wg sync.WaitGroup

	// dispatcher.  every task sent is followed by its ticket, so every
	// ticket is answered.
	go func() {
		defer close(tickets)
		defer close(tasks)
		for i := 0; i < n; i++ {
			rch := make(chan outcome, 1)
			select {
			case tasks <- task{i, rch}:
			case <-ctx.Done():
				return
			}
			tickets <- rch
		}
	}()

	// workers are started as tasks call for them, up to the pool size.
	worker := func(t task) {
		defer wg.Done()
		for ok := true; ok; t, ok = <-tasks {
			t.rch <- o.realize(ctx, cat, res.Denoised, t.index)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < workers; i++ {
			t, ok := <-tasks
			if !ok {
				return
			}
			wg.Add(1)
			go worker(t)
		}
	}()

	for rch := range tickets {
		out := <-rch
		switch {
		case out.cancelled:
			continue
		case out.err != nil:
			res.Failures = append(res.Failures, RealizationError{out.r.Index, out.err})
			o.log.Error("realization failed",
				zap.Int("realization", out.r.Index), zap.Error(out.err))
			continue
		}
		o.warn(res, RealizationName(out.r.Index)+" combine", out.combineDg)
		name := RealizationName(out.r.Index)
		if err := o.write(name,
			labeledMap{LabelGamma1, out.r.Combined.G1},
			labeledMap{LabelGamma2, out.r.Combined.G2},
			labeledMap{LabelKappaE, out.r.NoiseConvergence.E},
			labeledMap{LabelKappaB, out.r.NoiseConvergence.B}); err != nil {
			res.Failures = append(res.Failures, RealizationError{out.r.Index, err})
			o.log.Error("realization not written",
				zap.Int("realization", out.r.Index), zap.Error(err))
			continue
		}
		if !o.retain {
			out.r = Realization{Index: out.r.Index}
		}
		res.Realizations = append(res.Realizations, out.r)
		o.log.Debug("realization done", zap.Int("realization", out.r.Index))
	}
	wg.Wait()
}
