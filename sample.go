package boltzmann

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Condition fixes one visible column to a value for every sample row during
// conditional sampling. Col is the zero-based visible node index.
type Condition struct {
	Col   int
	Value float32
}

type sampleConf struct {
	burnin     int
	conds      []Condition
	sampleLast bool
}

// SampleOpt tweaks SampleParticles and Samples.
type SampleOpt func(*sampleConf)

// WithBurnin sets the number of burn-in Gibbs sweeps.
func WithBurnin(n int) SampleOpt {
	return func(c *sampleConf) { c.burnin = n }
}

// WithConditions clamps visible columns to fixed values for every sample,
// drawing from the conditional distribution of the remaining nodes.
func WithConditions(conds ...Condition) SampleOpt {
	return func(c *sampleConf) { c.conds = conds }
}

// WithSampleLast controls the final readout. When set to false, the last
// visible state is the deterministic potential instead of a stochastic
// draw (one burn-in sweep is traded for the potential computation).
func WithSampleLast(b bool) SampleOpt {
	return func(c *sampleConf) { c.sampleLast = b }
}

// SampleParticles draws nParticles approximately independent joint states
// of the model: particles are initialized uniformly over each layer's
// support and burned in for 10 sweeps (override with WithBurnin). All
// layers are returned.
func (s *Sampler) SampleParticles(m DBM, nParticles int, opts ...SampleOpt) (Particles, error) {
	conf := sampleConf{burnin: 10, sampleLast: true}
	for _, opt := range opts {
		opt(&conf)
	}
	p := NewParticles(m, nParticles)
	if err := p.Init(s.rand, m, false); err != nil {
		return nil, errors.WithMessage(err, "sample particles")
	}
	if err := s.Gibbs(m, p, conf.burnin); err != nil {
		return nil, errors.WithMessage(err, "sample particles")
	}
	return p, nil
}

// Samples draws nSamples visible-layer states of the model, burned in for
// 50 sweeps by default. With WithConditions the given visible columns are
// clamped for every row and every sweep, so the result is drawn from the
// conditional distribution. With WithSampleLast(false) the final visible
// state is the deterministic potential, clamps re-applied. Only the
// visible layer's batch is returned.
func (s *Sampler) Samples(m DBM, nSamples int, opts ...SampleOpt) (*tensor.Dense, error) {
	conf := sampleConf{burnin: 50, sampleLast: true}
	for _, opt := range opts {
		opt(&conf)
	}
	p := NewParticles(m, nSamples)
	if err := p.Init(s.rand, m, false); err != nil {
		return nil, errors.WithMessage(err, "samples")
	}

	mask, err := clampConditions(p[0], conf.conds)
	if err != nil {
		return nil, errors.WithMessage(err, "samples")
	}

	steps := conf.burnin
	if !conf.sampleLast {
		steps--
	}
	if steps < 0 {
		steps = 0
	}
	if err := s.GibbsCond(m, p, steps, mask); err != nil {
		return nil, errors.WithMessage(err, "samples")
	}

	if !conf.sampleLast && nSamples > 0 {
		if err := m[0].VisiblePotential(p[1], p[0], 1); err != nil {
			return nil, errors.WithMessage(err, "samples")
		}
		// the potential overwrote the clamped columns; put them back
		if _, err := clampConditions(p[0], conf.conds); err != nil {
			return nil, errors.WithMessage(err, "samples")
		}
	}
	return p[0], nil
}

// clampConditions writes the condition values into every row of the
// visible batch and returns the column mask, nil when conds is empty.
func clampConditions(v *tensor.Dense, conds []Condition) ([]bool, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	nv := v.Shape()[1]
	mask := make([]bool, nv)
	xs := floats(v)
	for _, c := range conds {
		if c.Col < 0 || c.Col >= nv {
			return nil, errors.Errorf("condition column %d out of range [0, %d)", c.Col, nv)
		}
		mask[c.Col] = true
		for at := c.Col; at < len(xs); at += nv {
			xs[at] = c.Value
		}
	}
	return mask, nil
}
