package boltzmann

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Float is the element type of every matrix in this package.
var Float = tensor.Float32

// LayerPair is one RBM-like unit: a weighted bipartite connection between a
// visible-role layer and a hidden-role layer. Every operation accepts either
// a single sample (1-D tensor) or a batch (2-D tensor, rows = samples) and
// writes its result into the caller-supplied out tensor of matching shape.
//
// factor uniformly scales the pre-nonlinearity input before the family's
// nonlinearity is applied. It is used when a pair is evaluated as one of
// several contributions to a shared intermediate layer of a deep model.
type LayerPair interface {
	VisibleSize() int
	HiddenSize() int
	VisibleFamily() Family
	HiddenFamily() Family

	// HiddenInput computes the pre-nonlinearity hidden input: the weighted
	// sum of the visible activations plus the hidden bias.
	HiddenInput(v, out *tensor.Dense) error
	// HiddenPotential computes the expected hidden activation.
	HiddenPotential(v, out *tensor.Dense, factor float32) error
	// SampleHidden computes the hidden potential and applies the hidden
	// family's stochastic draw.
	SampleHidden(rng *rand.Rand, v, out *tensor.Dense, factor float32) error

	// VisibleInput computes the pre-nonlinearity visible input: the weighted
	// sum of the hidden activations plus the visible bias.
	VisibleInput(h, out *tensor.Dense) error
	// VisiblePotential computes the expected visible activation.
	VisiblePotential(h, out *tensor.Dense, factor float32) error
	// SampleVisible computes the visible potential and applies the visible
	// family's stochastic draw.
	SampleVisible(rng *rand.Rand, h, out *tensor.Dense, factor float32) error

	// InitVisible fills v with fresh activations: drawn uniformly over the
	// family's support if biased is false, informed by the bias vector if
	// biased is true.
	InitVisible(rng *rand.Rand, v *tensor.Dense, biased bool) error
	// InitHidden is InitVisible for the hidden side.
	InitHidden(rng *rand.Rand, h *tensor.Dense, biased bool) error
}

// RBM is a concrete LayerPair: one weight matrix (visible size × hidden
// size), one bias vector per side, and per-side distribution families. The
// hidden side is always Bernoulli; the visible side may be any concrete
// Family. Gaussian visible sides carry a per-node standard deviation,
// Softmax visible sides a list of category group ranges.
type RBM struct {
	vis, hid Family

	w   *tensor.Dense // visible × hidden
	wt  *tensor.Dense // hidden × visible, materialized once
	wUp *tensor.Dense // weights for the hidden direction; deviation-scaled for Gaussian families, aliases w otherwise

	vbias, hbias []float32
	std          []float32 // Gaussian families only
	groups       []Range   // Softmax only
}

// RBMOpt is a construction option for NewRBM.
type RBMOpt func(*RBM)

// WithStd sets the per-visible-node standard deviation vector. Required for
// the Gaussian families.
func WithStd(std []float32) RBMOpt {
	return func(r *RBM) { r.std = std }
}

// WithGroups sets the category group ranges of a Softmax visible layer.
// The ranges must partition the visible index space contiguously.
func WithGroups(groups ...Range) RBMOpt {
	return func(r *RBM) { r.groups = groups }
}

// NewRBM builds a layer pair from materialized parameters. w must be a
// 2-D tensor shaped (len(vbias), len(hbias)). The parameters are treated as
// immutable for the lifetime of the RBM; w's backing is not copied.
func NewRBM(vis, hid Family, w *tensor.Dense, vbias, hbias []float32, opts ...RBMOpt) (*RBM, error) {
	if err := vis.checkVisible(); err != nil {
		return nil, errors.WithMessage(err, "visible side")
	}
	if err := hid.checkHidden(); err != nil {
		return nil, errors.WithMessage(err, "hidden side")
	}
	if w.Dims() != 2 {
		return nil, errors.Errorf("weights must be a matrix, got %d dimensions", w.Dims())
	}
	ws := w.Shape()
	if ws[0] != len(vbias) || ws[1] != len(hbias) {
		return nil, errors.Errorf("weights are %v, biases want (%d, %d)", ws, len(vbias), len(hbias))
	}

	r := &RBM{vis: vis, hid: hid, w: w, vbias: vbias, hbias: hbias}
	for _, opt := range opts {
		opt(r)
	}

	switch {
	case vis.gaussian():
		if len(r.std) != len(vbias) {
			return nil, errors.Errorf("family %v wants %d standard deviations, got %d", vis, len(vbias), len(r.std))
		}
	case r.std != nil:
		return nil, errors.Errorf("family %v does not take standard deviations", vis)
	}
	switch vis {
	case Softmax:
		if err := checkPartition(r.groups, len(vbias)); err != nil {
			return nil, errors.WithMessage(err, "softmax groups")
		}
	default:
		if r.groups != nil {
			return nil, errors.Errorf("family %v does not take category groups", vis)
		}
	}

	r.wt = transposed(w)
	r.wUp = w
	if vis.gaussian() {
		r.wUp = deviationScaled(w, r.std, vis == Gaussian2)
	}
	return r, nil
}

func (r *RBM) VisibleSize() int       { return len(r.vbias) }
func (r *RBM) HiddenSize() int        { return len(r.hbias) }
func (r *RBM) VisibleFamily() Family  { return r.vis }
func (r *RBM) HiddenFamily() Family   { return r.hid }
func (r *RBM) Weights() *tensor.Dense { return r.w }
func (r *RBM) VisibleBias() []float32 { return r.vbias }
func (r *RBM) HiddenBias() []float32  { return r.hbias }
func (r *RBM) Std() []float32         { return r.std }
func (r *RBM) Groups() []Range        { return r.groups }

func (r *RBM) HiddenInput(v, out *tensor.Dense) error {
	vm, om, err := r.buffers(v, out, r.VisibleSize(), r.HiddenSize())
	if err != nil {
		return errors.WithMessage(err, "hidden input")
	}
	if _, err := vm.MatMul(r.wUp, tensor.WithReuse(om)); err != nil {
		return errors.Wrap(err, "hidden input")
	}
	addRowwise(floats(om), r.hbias)
	return nil
}

func (r *RBM) HiddenPotential(v, out *tensor.Dense, factor float32) error {
	if err := r.HiddenInput(v, out); err != nil {
		return err
	}
	xs := floats(out)
	if factor != 1 {
		vecf32.Scale(xs, factor)
	}
	logistics(xs)
	return nil
}

func (r *RBM) SampleHidden(rng *rand.Rand, v, out *tensor.Dense, factor float32) error {
	if err := r.HiddenPotential(v, out, factor); err != nil {
		return err
	}
	bernoulliDraw(rng, floats(out))
	return nil
}

func (r *RBM) VisibleInput(h, out *tensor.Dense) error {
	hm, om, err := r.buffers(h, out, r.HiddenSize(), r.VisibleSize())
	if err != nil {
		return errors.WithMessage(err, "visible input")
	}
	if _, err := hm.MatMul(r.wt, tensor.WithReuse(om)); err != nil {
		return errors.Wrap(err, "visible input")
	}
	addRowwise(floats(om), r.vbias)
	return nil
}

// VisiblePotential computes the expected visible activation. factor applies
// to the Bernoulli-family and Softmax nonlinearities; the Gaussian potential
// is linear and takes no factor.
func (r *RBM) VisiblePotential(h, out *tensor.Dense, factor float32) error {
	switch r.vis {
	case Bernoulli, Binomial2:
		if err := r.VisibleInput(h, out); err != nil {
			return err
		}
		xs := floats(out)
		if factor != 1 {
			vecf32.Scale(xs, factor)
		}
		logistics(xs)
		if r.vis == Binomial2 {
			vecf32.Scale(xs, 2)
		}
		return nil
	case Gaussian:
		// mean = (h·wt) scaled by the deviation, plus bias; the scaling
		// applies to the weighted sum only, not to the bias.
		hm, om, err := r.buffers(h, out, r.HiddenSize(), r.VisibleSize())
		if err != nil {
			return errors.WithMessage(err, "visible potential")
		}
		if _, err := hm.MatMul(r.wt, tensor.WithReuse(om)); err != nil {
			return errors.Wrap(err, "visible potential")
		}
		xs := floats(om)
		nv := r.VisibleSize()
		for i := range xs {
			c := i % nv
			xs[i] = xs[i]*r.std[c] + r.vbias[c]
		}
		return nil
	case Gaussian2:
		return r.VisibleInput(h, out)
	case Softmax:
		if err := r.VisibleInput(h, out); err != nil {
			return err
		}
		xs := floats(out)
		if factor != 1 {
			vecf32.Scale(xs, factor)
		}
		r.eachGroup(xs, softmax1)
		return nil
	}
	return errors.Errorf("no visible potential for family %v", r.vis)
}

func (r *RBM) SampleVisible(rng *rand.Rand, h, out *tensor.Dense, factor float32) error {
	if err := r.VisiblePotential(h, out, factor); err != nil {
		return err
	}
	xs := floats(out)
	switch r.vis {
	case Bernoulli:
		bernoulliDraw(rng, xs)
	case Binomial2:
		vecf32.Scale(xs, 0.5)
		binomial2Draw(rng, xs)
	case Gaussian, Gaussian2:
		gaussianDraw(rng, xs, r.std)
	case Softmax:
		r.eachGroup(xs, func(g []float32) { categorical1Draw(rng, g) })
	}
	return nil
}

func (r *RBM) InitVisible(rng *rand.Rand, v *tensor.Dense, biased bool) error {
	return r.initSide(rng, v, biased, r.vis, r.vbias)
}

func (r *RBM) InitHidden(rng *rand.Rand, h *tensor.Dense, biased bool) error {
	return r.initSide(rng, h, biased, r.hid, r.hbias)
}

func (r *RBM) initSide(rng *rand.Rand, t *tensor.Dense, biased bool, fam Family, bias []float32) error {
	m, err := asMatrix(t, len(bias))
	if err != nil {
		return errors.WithMessage(err, "init")
	}
	xs := floats(m)
	n := len(bias)

	if !biased {
		switch fam {
		case Bernoulli:
			for i := range xs {
				xs[i] = float32(rng.Intn(2))
			}
		case Binomial2:
			// Uniform over the 4-way support {0,1,1,2}: value 1 carries
			// twice the weight of 0 or 2. Preserved as is; it coincides
			// with Binomial(2, 0.5) only at p=0.5.
			for i := range xs {
				xs[i] = binomial2Support[rng.Intn(4)]
			}
		case Gaussian, Gaussian2:
			for i := range xs {
				xs[i] = float32(rng.NormFloat64())
			}
		case Softmax:
			r.eachGroup(xs, func(g []float32) {
				c := rng.Intn(len(g) + 1)
				for i := range g {
					g[i] = 0
				}
				if c < len(g) {
					g[c] = 1
				}
			})
		}
		return nil
	}

	switch fam {
	case Bernoulli, Binomial2:
		for i := range xs {
			xs[i] = logistic(bias[i%n])
		}
		if fam == Bernoulli {
			bernoulliDraw(rng, xs)
		} else {
			binomial2Draw(rng, xs)
		}
	case Gaussian:
		for i := range xs {
			c := i % n
			xs[i] = bias[c] + r.std[c]*float32(rng.NormFloat64())
		}
	case Gaussian2:
		for i := range xs {
			xs[i] = bias[i%n] + float32(rng.NormFloat64())
		}
	case Softmax:
		probs := make([]float32, n)
		copy(probs, bias)
		r.eachGroup(probs, softmax1)
		for i := range xs {
			xs[i] = probs[i%n]
		}
		r.eachGroup(xs, func(g []float32) { categorical1Draw(rng, g) })
	}
	return nil
}

var binomial2Support = [4]float32{0, 1, 1, 2}

// eachGroup applies f to every category group of every row of the row-major
// visible buffer xs, in row then group order.
func (r *RBM) eachGroup(xs []float32, f func(group []float32)) {
	nv := r.VisibleSize()
	for at := 0; at < len(xs); at += nv {
		row := xs[at : at+nv]
		for _, g := range r.groups {
			f(row[g.start:g.end])
		}
	}
}

// buffers views in and out as row-aligned matrices with the given column
// counts, wrapping 1-D tensors as single-row matrices over the same backing.
func (r *RBM) buffers(in, out *tensor.Dense, inCols, outCols int) (im, om *tensor.Dense, err error) {
	if im, err = asMatrix(in, inCols); err != nil {
		return nil, nil, err
	}
	if om, err = asMatrix(out, outCols); err != nil {
		return nil, nil, err
	}
	if ir, or := im.Shape()[0], om.Shape()[0]; ir != or {
		return nil, nil, errors.Errorf("batch size mismatch: in has %d rows, out has %d", ir, or)
	}
	return im, om, nil
}

// floats returns the backing slice of t. Empty tensors yield nil: Data()
// cannot be asked for a zero-length backing, and a zero-particle batch is a
// valid degenerate input everywhere in this package.
func floats(t *tensor.Dense) []float32 {
	if t.Size() == 0 {
		return nil
	}
	return t.Data().([]float32)
}

// asMatrix returns t viewed as a matrix with cols columns. A 1-D t is
// wrapped as a 1×cols matrix sharing t's backing, so writes pass through.
func asMatrix(t *tensor.Dense, cols int) (*tensor.Dense, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}
	switch t.Dims() {
	case 1:
		if n := t.Shape()[0]; n != cols {
			return nil, errors.Errorf("vector has %d entries, want %d", n, cols)
		}
		return tensor.New(tensor.WithShape(1, cols), tensor.WithBacking(t.Data())), nil
	case 2:
		if n := t.Shape()[1]; n != cols {
			return nil, errors.Errorf("matrix has %d columns, want %d", n, cols)
		}
		return t, nil
	}
	return nil, errors.Errorf("want a vector or a matrix, got %d dimensions", t.Dims())
}

// addRowwise adds the bias vector b to every row of the row-major buffer xs.
func addRowwise(xs, b []float32) {
	n := len(b)
	for at := 0; at < len(xs); at += n {
		vecf32.Add(xs[at:at+n], b)
	}
}

// transposed materializes the transpose of a matrix. The copy is taken once
// at construction so both multiply directions run on contiguous data.
func transposed(w *tensor.Dense) *tensor.Dense {
	s := w.Shape()
	rows, cols := s[0], s[1]
	src := w.Data().([]float32)
	dst := make([]float32, len(src))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return tensor.New(tensor.WithShape(cols, rows), tensor.WithBacking(dst))
}

// deviationScaled returns a copy of w with row i divided by std[i], or by
// std[i]² when byVariance is set (the Gaussian2 convention).
func deviationScaled(w *tensor.Dense, std []float32, byVariance bool) *tensor.Dense {
	s := w.Shape()
	rows, cols := s[0], s[1]
	src := w.Data().([]float32)
	dst := make([]float32, len(src))
	for i := 0; i < rows; i++ {
		d := std[i]
		if byVariance {
			d *= d
		}
		for j := 0; j < cols; j++ {
			dst[i*cols+j] = src[i*cols+j] / d
		}
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(dst))
}
