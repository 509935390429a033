package boltzmann

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Range is a half-open column range [Start(), End()) into a layer's node
// index space. It implements tensor.Slice so it can be used to slice
// particle matrices directly.
type Range struct {
	start, end int
}

// R creates a Range covering [start, end).
func R(start, end int) Range { return Range{start: start, end: end} }

func (r Range) Start() int { return r.start }
func (r Range) End() int   { return r.end }
func (r Range) Step() int  { return 1 }
func (r Range) Len() int   { return r.end - r.start }

var _ tensor.Slice = Range{}

// checkPartition verifies that ranges are monotonically increasing and
// partition [0, total) exactly, with no overlap and no gap.
func checkPartition(ranges []Range, total int) error {
	at := 0
	for i, r := range ranges {
		if r.start != at {
			return errors.Errorf("range %d starts at %d, want %d: ranges must be contiguous and gap free", i, r.start, at)
		}
		if r.end <= r.start {
			return errors.Errorf("range %d [%d, %d) is empty or inverted", i, r.start, r.end)
		}
		at = r.end
	}
	if at != total {
		return errors.Errorf("ranges cover [0, %d), want [0, %d)", at, total)
	}
	return nil
}
