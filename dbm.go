package boltzmann

import "github.com/pkg/errors"

// DBM is an ordered stack of layer pairs. Pair i connects layer i (in the
// visible role) to layer i+1 (in the hidden role); adjacent pairs share a
// layer. A one-pair DBM is a plain RBM.
//
// Interior layers receive combined input from both neighbours, and the only
// combined nonlinearity defined for that case is the logistic one, so every
// shared layer must be Bernoulli on both of its sides.
type DBM []LayerPair

// NewDBM validates and assembles a layer-pair stack.
func NewDBM(pairs ...LayerPair) (DBM, error) {
	if len(pairs) == 0 {
		return nil, errors.New("a DBM needs at least one layer pair")
	}
	for i, pair := range pairs[1:] {
		below := pairs[i]
		if below.HiddenSize() != pair.VisibleSize() {
			return nil, errors.Errorf("pair %d has %d hidden nodes but pair %d has %d visible nodes: adjacent pairs share a layer",
				i, below.HiddenSize(), i+1, pair.VisibleSize())
		}
		if f := below.HiddenFamily(); f != Bernoulli {
			return nil, errors.Errorf("shared layer %d is %v on its hidden side, must be Bernoulli", i+1, f)
		}
		if f := pair.VisibleFamily(); f != Bernoulli {
			return nil, errors.Errorf("shared layer %d is %v on its visible side, must be Bernoulli", i+1, f)
		}
	}
	return DBM(pairs), nil
}

// Layers returns the number of node layers, one more than the pair count.
func (m DBM) Layers() int { return len(m) + 1 }

// LayerSize returns the node count of layer i.
func (m DBM) LayerSize(i int) int {
	if i == 0 {
		return m[0].VisibleSize()
	}
	return m[i-1].HiddenSize()
}
