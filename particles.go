package boltzmann

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Particles holds a batch of joint activation states for a model: one
// matrix per layer, rows = particle index (shared across layers), columns =
// that layer's node count. A Particles value is exclusively owned by one
// sampling call at a time.
type Particles []*tensor.Dense

// NewParticles allocates an all-zero particle batch of n particles shaped
// for the model's layers.
func NewParticles(m DBM, n int) Particles {
	p := make(Particles, m.Layers())
	for i := range p {
		p[i] = newMatrix(n, m.LayerSize(i))
	}
	return p
}

// Rows returns the number of particles in the batch.
func (p Particles) Rows() int {
	if len(p) == 0 {
		return 0
	}
	return p[0].Shape()[0]
}

// Init fills the batch with fresh activations, layer by layer. With biased
// unset, each layer is drawn uniformly over its family's support; with
// biased set, the draw is informed by the owning pair's bias vector.
func (p Particles) Init(rng *rand.Rand, m DBM, biased bool) error {
	if err := p.check(m); err != nil {
		return errors.WithMessage(err, "init particles")
	}
	if err := m[0].InitVisible(rng, p[0], biased); err != nil {
		return errors.WithMessage(err, "layer 0")
	}
	for i := 1; i < len(p); i++ {
		if err := m[i-1].InitHidden(rng, p[i], biased); err != nil {
			return errors.WithMessagef(err, "layer %d", i)
		}
	}
	return nil
}

// check verifies the batch is shaped for the model: one matrix per layer,
// consistent row counts, column counts equal to the layer sizes.
func (p Particles) check(m DBM) error {
	if len(p) != m.Layers() {
		return errors.Errorf("model has %d layers, batch has %d", m.Layers(), len(p))
	}
	rows := p.Rows()
	for i, l := range p {
		if l.Dims() != 2 {
			return errors.Errorf("layer %d is not a matrix", i)
		}
		s := l.Shape()
		if s[0] != rows {
			return errors.Errorf("layer %d has %d rows, layer 0 has %d", i, s[0], rows)
		}
		if want := m.LayerSize(i); s[1] != want {
			return errors.Errorf("layer %d has %d columns, model wants %d", i, s[1], want)
		}
	}
	return nil
}
