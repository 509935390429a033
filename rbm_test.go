package boltzmann

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func weights(rows, cols int, xs ...float32) *tensor.Dense {
	backing := make([]float32, rows*cols)
	copy(backing, xs)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func TestNewRBMValidation(t *testing.T) {
	w := weights(2, 3)
	cases := []struct {
		name string
		make func() (*RBM, error)
	}{
		{"shape mismatch", func() (*RBM, error) {
			return NewRBM(Bernoulli, Bernoulli, w, make([]float32, 3), make([]float32, 3))
		}},
		{"gaussian hidden", func() (*RBM, error) {
			return NewRBM(Bernoulli, Gaussian, w, make([]float32, 2), make([]float32, 3), WithStd([]float32{1, 1, 1}))
		}},
		{"softmax hidden", func() (*RBM, error) {
			return NewRBM(Bernoulli, Softmax, w, make([]float32, 2), make([]float32, 3))
		}},
		{"binomial2 hidden", func() (*RBM, error) {
			return NewRBM(Bernoulli, Binomial2, w, make([]float32, 2), make([]float32, 3))
		}},
		{"missing std", func() (*RBM, error) {
			return NewRBM(Gaussian, Bernoulli, w, make([]float32, 2), make([]float32, 3))
		}},
		{"short std", func() (*RBM, error) {
			return NewRBM(Gaussian, Bernoulli, w, make([]float32, 2), make([]float32, 3), WithStd([]float32{1}))
		}},
		{"unwanted std", func() (*RBM, error) {
			return NewRBM(Bernoulli, Bernoulli, w, make([]float32, 2), make([]float32, 3), WithStd([]float32{1, 1}))
		}},
		{"gappy groups", func() (*RBM, error) {
			return NewRBM(Softmax, Bernoulli, w, make([]float32, 2), make([]float32, 3), WithGroups(R(0, 1)))
		}},
		{"mixed family directly", func() (*RBM, error) {
			return NewRBM(Mixed, Bernoulli, w, make([]float32, 2), make([]float32, 3))
		}},
	}
	for _, c := range cases {
		if _, err := c.make(); err == nil {
			t.Errorf("%s: expected a construction error", c.name)
		}
	}

	r, err := NewRBM(Bernoulli, Bernoulli, w, make([]float32, 2), make([]float32, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, r.VisibleSize())
	assert.Equal(t, 3, r.HiddenSize())
	assert.Equal(t, Bernoulli, r.VisibleFamily())
}

func TestBernoulliPotentialRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := weights(4, 3,
		0.5, -1, 2,
		-0.3, 0.8, -2,
		1.5, 0.1, 0.9,
		-0.7, -0.2, 0.4,
	)
	r, err := NewRBM(Bernoulli, Bernoulli, w, []float32{0.1, -0.4, 2, -3}, []float32{1, 0, -1})
	require.NoError(t, err)

	v := newMatrix(16, 4)
	require.NoError(t, r.InitVisible(rng, v, false))

	pot := newMatrix(16, 3)
	require.NoError(t, r.HiddenPotential(v, pot, 1))
	for _, p := range pot.Data().([]float32) {
		if p < 0 || p > 1 {
			t.Fatalf("Bernoulli potential %v outside [0,1]", p)
		}
	}

	h := newMatrix(16, 3)
	require.NoError(t, r.SampleHidden(rng, v, h, 1))
	for _, x := range h.Data().([]float32) {
		if x != 0 && x != 1 {
			t.Fatalf("Bernoulli sample %v outside {0,1}", x)
		}
	}
}

func TestBinomial2Range(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	w := weights(2, 2, 0.3, -0.5, 0.2, 0.7)
	r, err := NewRBM(Binomial2, Bernoulli, w, []float32{0.5, -0.5}, []float32{0, 0})
	require.NoError(t, err)

	h := newMatrix(64, 2)
	require.NoError(t, r.InitHidden(rng, h, false))

	pot := newMatrix(64, 2)
	require.NoError(t, r.VisiblePotential(h, pot, 1))
	for _, p := range pot.Data().([]float32) {
		if p < 0 || p > 2 {
			t.Fatalf("Binomial2 potential %v outside [0,2]", p)
		}
	}

	v := newMatrix(64, 2)
	require.NoError(t, r.SampleVisible(rng, h, v, 1))
	for _, x := range v.Data().([]float32) {
		if x != 0 && x != 1 && x != 2 {
			t.Fatalf("Binomial2 sample %v outside {0,1,2}", x)
		}
	}
}

// With weights divided by the deviation in the hidden direction, a Gaussian
// pair's hidden input must match the hand-computed sum. Gaussian2 divides
// by the variance instead.
// A factor scales the full pre-nonlinearity input, bias included: the
// potential at factor f must equal the logistic of f times the raw input,
// in both directions.
func TestPotentialFactorScaling(t *testing.T) {
	r, err := NewRBM(Bernoulli, Bernoulli,
		weights(2, 3, 0.5, -1, 2, 0.25, 1.5, -0.75),
		[]float32{0.2, -0.4}, []float32{0.3, -0.7, 1.1})
	require.NoError(t, err)

	v := weights(2, 2, 1, 0, 1, 1)
	in := weights(2, 3)
	require.NoError(t, r.HiddenInput(v, in))
	out := weights(2, 3)
	require.NoError(t, r.HiddenPotential(v, out, 2))
	for i, x := range floats(in) {
		assert.InDelta(t, logistic(2*x), floats(out)[i], 1e-6, "hidden node %d", i)
	}

	h := weights(2, 3, 1, 0, 1, 0, 1, 1)
	vin := weights(2, 2)
	require.NoError(t, r.VisibleInput(h, vin))
	vout := weights(2, 2)
	require.NoError(t, r.VisiblePotential(h, vout, 3))
	for i, x := range floats(vin) {
		assert.InDelta(t, logistic(3*x), floats(vout)[i], 1e-6, "visible node %d", i)
	}
}

func TestGaussianInputConventions(t *testing.T) {
	assert := assert.New(t)
	w := weights(2, 1, 1, 1)
	std := []float32{2, 4}
	v := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{1, 1}))

	g1, err := NewRBM(Gaussian, Bernoulli, w, []float32{0, 0}, []float32{0}, WithStd(std))
	require.NoError(t, err)
	out := tensor.New(tensor.WithShape(1), tensor.WithBacking(make([]float32, 1)))
	require.NoError(t, g1.HiddenInput(v, out))
	assert.InDelta(1.0/2+1.0/4, out.Data().([]float32)[0], 1e-6, "Gaussian scales weights by the deviation")

	g2, err := NewRBM(Gaussian2, Bernoulli, w, []float32{0, 0}, []float32{0}, WithStd(std))
	require.NoError(t, err)
	require.NoError(t, g2.HiddenInput(v, out))
	assert.InDelta(1.0/4+1.0/16, out.Data().([]float32)[0], 1e-6, "Gaussian2 scales weights by the variance")
}

// The sample distribution around a fixed Gaussian potential must reproduce
// the potential as its mean and the configured deviation as its spread.
func TestGaussianRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	w := weights(2, 2, 0.5, -0.25, 1, 0.75)
	std := []float32{0.5, 2}
	r, err := NewRBM(Gaussian, Bernoulli, w, []float32{1, -1}, []float32{0, 0}, WithStd(std))
	require.NoError(t, err)

	h := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{1, 0}))
	pot := tensor.New(tensor.WithShape(2), tensor.WithBacking(make([]float32, 2)))
	require.NoError(t, r.VisiblePotential(h, pot, 1))
	want := pot.Data().([]float32)

	const trials = 20000
	sums := make([]float64, 2)
	sqsums := make([]float64, 2)
	out := tensor.New(tensor.WithShape(2), tensor.WithBacking(make([]float32, 2)))
	for i := 0; i < trials; i++ {
		require.NoError(t, r.SampleVisible(rng, h, out, 1))
		for j, x := range out.Data().([]float32) {
			sums[j] += float64(x)
			sqsums[j] += float64(x) * float64(x)
		}
	}
	for j := 0; j < 2; j++ {
		m := sums[j] / trials
		sd := math.Sqrt(sqsums[j]/trials - m*m)
		assert.InDelta(t, float64(want[j]), m, 0.05, "node %d mean", j)
		assert.InDelta(t, float64(std[j]), sd, 0.05, "node %d deviation", j)
	}
}

func TestSoftmaxVisibleOneHot(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	w := weights(5, 2,
		0.2, -0.1,
		0.4, 0.3,
		-0.6, 0.2,
		0.1, 0.1,
		-0.2, 0.5,
	)
	groups := []Range{R(0, 3), R(3, 5)}
	r, err := NewRBM(Softmax, Bernoulli, w, make([]float32, 5), make([]float32, 2), WithGroups(groups...))
	require.NoError(t, err)

	h := newMatrix(32, 2)
	require.NoError(t, r.InitHidden(rng, h, false))
	v := newMatrix(32, 5)
	require.NoError(t, r.SampleVisible(rng, h, v, 1))

	xs := v.Data().([]float32)
	for row := 0; row < 32; row++ {
		for _, g := range groups {
			active := 0
			for c := g.Start(); c < g.End(); c++ {
				x := xs[row*5+c]
				if x != 0 && x != 1 {
					t.Fatalf("row %d: softmax sample %v outside {0,1}", row, x)
				}
				if x == 1 {
					active++
				}
			}
			if active > 1 {
				t.Fatalf("row %d: group %v has %d active nodes", row, g, active)
			}
		}
	}
}

// A vector is just a one-row batch: both forms must agree draw for draw.
func TestVectorBatchAgree(t *testing.T) {
	w := weights(3, 2, 0.5, -1, 0.25, 0.75, -0.5, 1)
	r, err := NewRBM(Bernoulli, Bernoulli, w, []float32{0.1, 0.2, 0.3}, []float32{-0.1, 0.4})
	require.NoError(t, err)

	vec := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{1, 0, 1}))
	mat := tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float32{1, 0, 1}))

	outVec := tensor.New(tensor.WithShape(2), tensor.WithBacking(make([]float32, 2)))
	outMat := tensor.New(tensor.WithShape(1, 2), tensor.WithBacking(make([]float32, 2)))
	require.NoError(t, r.HiddenPotential(vec, outVec, 1))
	require.NoError(t, r.HiddenPotential(mat, outMat, 1))
	assert.Equal(t, outVec.Data(), outMat.Data())
}
