package boltzmann

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// Sampler runs block Gibbs sampling over a model. It owns the random source
// every stochastic draw goes through; two samplers seeded alike replay the
// exact same particle trajectories, since draws are consumed in a fixed
// order (by layer, then row-major within a layer, then category group).
type Sampler struct {
	rand  *rand.Rand
	stats *Statistics
}

// SamplerOpt is a construction option for NewSampler.
type SamplerOpt func(*Sampler)

// WithSeed seeds the sampler's random source for reproducible runs.
func WithSeed(seed int64) SamplerOpt {
	return func(s *Sampler) { s.rand = rand.New(rand.NewSource(seed)) }
}

// WithStatistics makes the sampler record per-layer mean activations into
// st after every sweep.
func WithStatistics(st *Statistics) SamplerOpt {
	return func(s *Sampler) { s.stats = st }
}

// NewSampler creates a sampler. Without WithSeed the random source is
// seeded from the wall clock.
func NewSampler(opts ...SamplerOpt) *Sampler {
	s := &Sampler{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rand exposes the sampler's random source, for callers that interleave
// their own draws with sampling (e.g. contrastive-divergence estimators).
func (s *Sampler) Rand() *rand.Rand { return s.rand }

// Gibbs runs nSteps Gibbs sweeps over the particle batch, in place.
// A one-pair model uses the sequential RBM sweep: the visible layer is
// sampled from the current hidden layer, then the hidden layer from the
// fresh visible layer. A deeper model updates all layers simultaneously
// from the previous sweep's state (true block Gibbs), double-buffered.
// nSteps = 0 is a no-op.
func (s *Sampler) Gibbs(m DBM, p Particles, nSteps int) error {
	return s.gibbs(m, p, nSteps, nil)
}

// GibbsCond is Gibbs with a subset of visible columns clamped: after every
// visible-layer update, columns with mask set are restored to the values
// they held when the call started. The mask is shared by all particle rows;
// each row keeps its own clamped values. An empty or all-false mask behaves
// exactly like Gibbs.
func (s *Sampler) GibbsCond(m DBM, p Particles, nSteps int, mask []bool) error {
	return s.gibbs(m, p, nSteps, mask)
}

// GibbsRBM runs nSteps sequential sweeps over a single layer pair, scaling
// the pre-nonlinearity inputs by upfactor (hidden direction) and downfactor
// (visible direction). p must hold exactly two layers.
func (s *Sampler) GibbsRBM(m LayerPair, p Particles, nSteps int, upfactor, downfactor float32) error {
	dbm := DBM{m}
	if err := p.check(dbm); err != nil {
		return errors.WithMessage(err, "gibbs")
	}
	if p.Rows() == 0 {
		return nil
	}
	return s.sweepPair(m, p, nSteps, upfactor, downfactor, nil, nil)
}

func (s *Sampler) gibbs(m DBM, p Particles, nSteps int, mask []bool) error {
	if err := p.check(m); err != nil {
		return errors.WithMessage(err, "gibbs")
	}
	clamp, ref, err := captureClamp(p, m, mask)
	if err != nil {
		return errors.WithMessage(err, "gibbs")
	}
	if nSteps == 0 || p.Rows() == 0 {
		return nil
	}
	if len(m) == 1 {
		return s.sweepPair(m[0], p, nSteps, 1, 1, clamp, ref)
	}
	return s.sweepDeep(m, p, nSteps, clamp, ref)
}

// captureClamp snapshots the to-be-clamped visible values before the first
// sweep. A mask with no set bits is dropped so that empty-conditions
// sampling is exactly unconditioned sampling.
func captureClamp(p Particles, m DBM, mask []bool) ([]bool, []float32, error) {
	if mask == nil {
		return nil, nil, nil
	}
	if nv := m.LayerSize(0); len(mask) != nv {
		return nil, nil, errors.Errorf("mask covers %d visible columns, model has %d", len(mask), nv)
	}
	any := false
	for _, b := range mask {
		any = any || b
	}
	if !any {
		return nil, nil, nil
	}
	src := floats(p[0])
	ref := make([]float32, len(src))
	copy(ref, src)
	return mask, ref, nil
}

// applyClamp restores the masked columns of the row-major visible buffer xs
// from the snapshot ref, every row.
func applyClamp(xs, ref []float32, mask []bool) {
	if mask == nil {
		return
	}
	n := len(mask)
	for at := 0; at < len(xs); at += n {
		for c, b := range mask {
			if b {
				xs[at+c] = ref[at+c]
			}
		}
	}
}

// sweepPair is the two-layer sweep: visible from hidden, then hidden from
// the fresh visible. The visible-first order is fixed; it decides which
// layer sees fresher state within a sweep.
func (s *Sampler) sweepPair(m LayerPair, p Particles, nSteps int, upfactor, downfactor float32, clamp []bool, ref []float32) error {
	for step := 0; step < nSteps; step++ {
		if err := m.SampleVisible(s.rand, p[1], p[0], downfactor); err != nil {
			return errors.WithMessagef(err, "sweep %d", step)
		}
		applyClamp(floats(p[0]), ref, clamp)
		if err := m.SampleHidden(s.rand, p[0], p[1], upfactor); err != nil {
			return errors.WithMessagef(err, "sweep %d", step)
		}
		s.record(p)
	}
	return nil
}

// sweepDeep is the simultaneous multi-layer sweep. Every layer of the new
// buffer is computed from the old buffer alone; the buffers then swap roles
// in O(1). Interior layers sum the hidden-direction input from the pair
// below and the visible-direction input from the pair above before the
// single logistic-Bernoulli draw. Contributions combine before the
// nonlinearity, never as separately sampled values.
func (s *Sampler) sweepDeep(m DBM, p Particles, nSteps int, clamp []bool, ref []float32) error {
	rows := p.Rows()
	last := len(p) - 1

	scratch := make(Particles, len(p))
	for i := range scratch {
		scratch[i] = borrowMatrix(rows, m.LayerSize(i))
	}
	cur, nxt := make(Particles, len(p)), make(Particles, len(p))
	copy(cur, p)
	copy(nxt, scratch)

	defer func() {
		for i, t := range scratch {
			returnMatrix(rows, m.LayerSize(i), t)
		}
	}()

	var err error
	for step := 0; step < nSteps; step++ {
		if err = m[0].SampleVisible(s.rand, cur[1], nxt[0], 1); err != nil {
			return errors.WithMessagef(err, "sweep %d layer 0", step)
		}
		applyClamp(floats(nxt[0]), ref, clamp)

		for i := 1; i < last; i++ {
			if err = s.sampleInterior(m, cur, nxt, i); err != nil {
				return errors.WithMessagef(err, "sweep %d layer %d", step, i)
			}
		}

		if err = m[last-1].SampleHidden(s.rand, cur[last-1], nxt[last], 1); err != nil {
			return errors.WithMessagef(err, "sweep %d layer %d", step, last)
		}

		cur, nxt = nxt, cur
		s.record(cur)
	}

	// After an odd number of swaps the freshest state lives in the scratch
	// buffers; the caller keeps its own matrices, so copy back once.
	if cur[0] != p[0] {
		for i := range p {
			copy(floats(p[i]), floats(cur[i]))
		}
	}
	return nil
}

// sampleInterior updates interior layer i of nxt from the old state cur:
// summed input from both neighbours, then one logistic-Bernoulli draw.
func (s *Sampler) sampleInterior(m DBM, cur, nxt Particles, i int) error {
	rows := cur.Rows()
	size := nxt[i].Shape()[1]

	if err := m[i-1].HiddenInput(cur[i-1], nxt[i]); err != nil {
		return errors.WithMessage(err, "input from below")
	}
	above := borrowMatrix(rows, size)
	err := m[i].VisibleInput(cur[i+1], above)
	if err == nil {
		xs := floats(nxt[i])
		vecf32.Add(xs, floats(above))
		logistics(xs)
		bernoulliDraw(s.rand, xs)
	}
	returnMatrix(rows, size, above)
	return errors.WithMessage(err, "input from above")
}

func (s *Sampler) record(p Particles) {
	if s.stats != nil {
		s.stats.Update(p)
	}
}
