package boltzmann

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Partitioned is a block-diagonal LayerPair: an ordered sequence of
// independent sub-pairs, each owning a contiguous slice of the combined
// visible and hidden index spaces. Every operation dispatches to each
// sub-pair over its own column ranges; the ranges are disjoint and
// exhaustive, so sub-results never overlap.
type Partitioned struct {
	subs    []LayerPair
	vranges []Range
	hranges []Range
	nv, nh  int
}

// NewPartitioned composes sub-pairs into one block-diagonal pair. The k-th
// sub-pair is assigned the visible and hidden column ranges immediately
// following those of the (k-1)-th, so the ranges partition the combined
// index spaces with no overlap and no gap.
func NewPartitioned(subs ...LayerPair) (*Partitioned, error) {
	if len(subs) == 0 {
		return nil, errors.New("a partitioned pair needs at least one sub-pair")
	}
	p := &Partitioned{
		subs:    subs,
		vranges: make([]Range, len(subs)),
		hranges: make([]Range, len(subs)),
	}
	for k, sub := range subs {
		p.vranges[k] = R(p.nv, p.nv+sub.VisibleSize())
		p.hranges[k] = R(p.nh, p.nh+sub.HiddenSize())
		p.nv = p.vranges[k].End()
		p.nh = p.hranges[k].End()
	}
	if err := checkPartition(p.vranges, p.nv); err != nil {
		return nil, errors.WithMessage(err, "visible ranges")
	}
	if err := checkPartition(p.hranges, p.nh); err != nil {
		return nil, errors.WithMessage(err, "hidden ranges")
	}
	return p, nil
}

func (p *Partitioned) VisibleSize() int { return p.nv }
func (p *Partitioned) HiddenSize() int  { return p.nh }

// VisibleRanges returns the visible column range of each sub-pair.
func (p *Partitioned) VisibleRanges() []Range { return p.vranges }

// HiddenRanges returns the hidden column range of each sub-pair.
func (p *Partitioned) HiddenRanges() []Range { return p.hranges }

func (p *Partitioned) VisibleFamily() Family { return p.sharedFamily(LayerPair.VisibleFamily) }
func (p *Partitioned) HiddenFamily() Family  { return p.sharedFamily(LayerPair.HiddenFamily) }

func (p *Partitioned) sharedFamily(side func(LayerPair) Family) Family {
	f := side(p.subs[0])
	for _, sub := range p.subs[1:] {
		if side(sub) != f {
			return Mixed
		}
	}
	return f
}

func (p *Partitioned) HiddenInput(v, out *tensor.Dense) error {
	return p.hiddenward(v, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.HiddenInput(si, so)
	})
}

func (p *Partitioned) HiddenPotential(v, out *tensor.Dense, factor float32) error {
	return p.hiddenward(v, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.HiddenPotential(si, so, factor)
	})
}

func (p *Partitioned) SampleHidden(rng *rand.Rand, v, out *tensor.Dense, factor float32) error {
	return p.hiddenward(v, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.SampleHidden(rng, si, so, factor)
	})
}

func (p *Partitioned) VisibleInput(h, out *tensor.Dense) error {
	return p.visibleward(h, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.VisibleInput(si, so)
	})
}

func (p *Partitioned) VisiblePotential(h, out *tensor.Dense, factor float32) error {
	return p.visibleward(h, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.VisiblePotential(si, so, factor)
	})
}

func (p *Partitioned) SampleVisible(rng *rand.Rand, h, out *tensor.Dense, factor float32) error {
	return p.visibleward(h, out, func(sub LayerPair, si, so *tensor.Dense) error {
		return sub.SampleVisible(rng, si, so, factor)
	})
}

func (p *Partitioned) InitVisible(rng *rand.Rand, v *tensor.Dense, biased bool) error {
	return p.initSide(v, p.nv, p.vranges, func(sub LayerPair, st *tensor.Dense) error {
		return sub.InitVisible(rng, st, biased)
	})
}

func (p *Partitioned) InitHidden(rng *rand.Rand, h *tensor.Dense, biased bool) error {
	return p.initSide(h, p.nh, p.hranges, func(sub LayerPair, st *tensor.Dense) error {
		return sub.InitHidden(rng, st, biased)
	})
}

// hiddenward runs op on every sub-pair with visible-side input and
// hidden-side output, over the sub-pair's own column ranges.
func (p *Partitioned) hiddenward(in, out *tensor.Dense, op func(sub LayerPair, si, so *tensor.Dense) error) error {
	return p.dispatch(in, out, p.nv, p.nh, p.vranges, p.hranges, op)
}

// visibleward is hiddenward with the directions reversed.
func (p *Partitioned) visibleward(in, out *tensor.Dense, op func(sub LayerPair, si, so *tensor.Dense) error) error {
	return p.dispatch(in, out, p.nh, p.nv, p.hranges, p.vranges, op)
}

func (p *Partitioned) dispatch(in, out *tensor.Dense, inCols, outCols int, inRs, outRs []Range, op func(sub LayerPair, si, so *tensor.Dense) error) error {
	im, err := asMatrix(in, inCols)
	if err != nil {
		return errors.WithMessage(err, "partitioned input")
	}
	om, err := asMatrix(out, outCols)
	if err != nil {
		return errors.WithMessage(err, "partitioned output")
	}
	rows := im.Shape()[0]
	if or := om.Shape()[0]; or != rows {
		return errors.Errorf("batch size mismatch: in has %d rows, out has %d", rows, or)
	}
	src := floats(im)
	dst := floats(om)

	for k, sub := range p.subs {
		ir, or := inRs[k], outRs[k]
		si := borrowMatrix(rows, ir.Len())
		so := borrowMatrix(rows, or.Len())
		gatherCols(floats(si), src, inCols, ir)
		err := op(sub, si, so)
		if err == nil {
			scatterCols(dst, floats(so), outCols, or)
		}
		returnMatrix(rows, ir.Len(), si)
		returnMatrix(rows, or.Len(), so)
		if err != nil {
			return errors.WithMessagef(err, "partition %d", k)
		}
	}
	return nil
}

func (p *Partitioned) initSide(t *tensor.Dense, cols int, rs []Range, init func(sub LayerPair, st *tensor.Dense) error) error {
	m, err := asMatrix(t, cols)
	if err != nil {
		return errors.WithMessage(err, "partitioned init")
	}
	rows := m.Shape()[0]
	dst := floats(m)
	for k, sub := range p.subs {
		r := rs[k]
		st := borrowMatrix(rows, r.Len())
		err := init(sub, st)
		if err == nil {
			scatterCols(dst, floats(st), cols, r)
		}
		returnMatrix(rows, r.Len(), st)
		if err != nil {
			return errors.WithMessagef(err, "partition %d", k)
		}
	}
	return nil
}

// gatherCols copies the columns rg of the row-major src (srcCols wide) into
// the contiguous dst (rg.Len() wide).
func gatherCols(dst, src []float32, srcCols int, rg Range) {
	w := rg.Len()
	for row, at := 0, 0; at < len(src); row, at = row+1, at+srcCols {
		copy(dst[row*w:(row+1)*w], src[at+rg.start:at+rg.end])
	}
}

// scatterCols copies the contiguous src (rg.Len() wide) into the columns rg
// of the row-major dst (dstCols wide).
func scatterCols(dst, src []float32, dstCols int, rg Range) {
	w := rg.Len()
	for row, at := 0, 0; at < len(dst); row, at = row+1, at+dstCols {
		copy(dst[at+rg.start:at+rg.end], src[row*w:(row+1)*w])
	}
}
