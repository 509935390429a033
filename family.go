package boltzmann

import "github.com/pkg/errors"

// Family identifies the node-distribution family of one side of a layer
// pair. The set is closed: sampling math is a total function over it.
type Family byte

const (
	// Bernoulli nodes take values in {0,1} with a sigmoid potential.
	Bernoulli Family = iota
	// Binomial2 nodes take values in {0,1,2}, the sum of two Bernoulli
	// trials at the same probability. Potentials are reported pre-doubled
	// so they occupy the same numeric range as samples.
	Binomial2
	// Gaussian nodes are real valued with a per-node standard deviation.
	// The potential is linear; sampling adds scaled Gaussian noise.
	Gaussian
	// Gaussian2 is a second weight/deviation convention: hidden-direction
	// inputs scale the weights by the variance instead of the standard
	// deviation, and the visible potential applies no deviation scaling.
	Gaussian2
	// Softmax nodes are partitioned into contiguous groups; within each
	// group at most one node is active, with an implicit always-zero
	// extra category absorbing the residual probability mass.
	Softmax
	// Mixed is reported by composite models whose partitions disagree on
	// their family. It is not constructible for a plain RBM.
	Mixed
)

func (f Family) String() string {
	switch f {
	case Bernoulli:
		return "Bernoulli"
	case Binomial2:
		return "Binomial2"
	case Gaussian:
		return "Gaussian"
	case Gaussian2:
		return "Gaussian2"
	case Softmax:
		return "Softmax"
	case Mixed:
		return "Mixed"
	}
	return "UNKNOWN FAMILY"
}

// gaussian reports whether f is one of the two Gaussian conventions.
func (f Family) gaussian() bool { return f == Gaussian || f == Gaussian2 }

// checkHidden rejects families that are only defined in the visible role.
// Only a Bernoulli hidden layer has a defined hidden-direction potential.
func (f Family) checkHidden() error {
	switch f {
	case Bernoulli:
		return nil
	case Binomial2, Gaussian, Gaussian2, Softmax:
		return errors.Errorf("family %v is not supported in the hidden role", f)
	}
	return errors.Errorf("unknown family %d", byte(f))
}

func (f Family) checkVisible() error {
	if f >= Mixed {
		return errors.Errorf("family %v is not a concrete visible family", f)
	}
	return nil
}
