package boltzmann

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// logistic is the standard logistic function 1/(1+exp(-x)).
func logistic(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// logistics applies the logistic function elementwise, in place.
func logistics(xs []float32) {
	for i, x := range xs {
		xs[i] = logistic(x)
	}
}

// bernoulliDraw replaces each probability p in xs with a Bernoulli(p) draw.
// In place, one uniform draw per element, in index (row-major) order.
func bernoulliDraw(rng *rand.Rand, xs []float32) {
	for i, p := range xs {
		if rng.Float32() < p {
			xs[i] = 1
		} else {
			xs[i] = 0
		}
	}
}

// binomial2Draw replaces each probability p in xs with the sum of two
// independent Bernoulli(p) draws, yielding values in {0, 1, 2}.
func binomial2Draw(rng *rand.Rand, xs []float32) {
	for i, p := range xs {
		var v float32
		if rng.Float32() < p {
			v++
		}
		if rng.Float32() < p {
			v++
		}
		xs[i] = v
	}
}

// gaussianDraw adds zero-mean Gaussian noise to xs, elementwise scaled by
// the corresponding entry of std. len(std) must divide len(xs); std is
// cycled per row so a batch can be processed in one call.
func gaussianDraw(rng *rand.Rand, xs, std []float32) {
	for i := range xs {
		xs[i] += std[i%len(std)] * float32(rng.NormFloat64())
	}
}

// softmax1 computes, in place, the softmax of xs over xs's categories plus
// one implicit category with a fixed activation of zero. The implicit
// category's probability is 1-sum(xs) after the call and is never stored.
// Max-shifted for numerical stability.
func softmax1(xs []float32) {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	sum := math32.Exp(-m) // the implicit zero category
	for i, x := range xs {
		e := math32.Exp(x - m)
		xs[i] = e
		sum += e
	}
	for i := range xs {
		xs[i] /= sum
	}
}

// categorical1Draw draws a single one-hot activation from the per-category
// probabilities in xs, in place. Residual probability mass (1-sum(xs))
// belongs to an implicit category; if it wins, xs is left all zero.
func categorical1Draw(rng *rand.Rand, xs []float32) {
	u := rng.Float32()
	var cum float32
	hit := -1
	for i, p := range xs {
		cum += p
		xs[i] = 0
		if hit < 0 && u < cum {
			hit = i
		}
	}
	if hit >= 0 {
		xs[hit] = 1
	}
}
