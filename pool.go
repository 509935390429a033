package boltzmann

import (
	"sync"

	"gorgonia.org/tensor"
)

// matPool hands out scratch matrices keyed by shape. The two-level map is
// guarded by matPoolMu; the pools themselves are safe for concurrent use.
var (
	matPoolMu sync.Mutex
	matPool   = make(map[int]map[int]*sync.Pool)
)

// borrowMatrix hands out an m×n float32 matrix from the shape-keyed pool.
// Contents are whatever the previous user left behind; callers overwrite.
func borrowMatrix(m, n int) *tensor.Dense {
	matPoolMu.Lock()
	d, ok := matPool[m]
	var p *sync.Pool
	if ok {
		p = d[n]
	}
	matPoolMu.Unlock()
	if p != nil {
		return p.Get().(*tensor.Dense)
	}
	return newMatrix(m, n)
}

func returnMatrix(m, n int, t *tensor.Dense) {
	matPoolMu.Lock()
	d, ok := matPool[m]
	if !ok {
		d = make(map[int]*sync.Pool)
		matPool[m] = d
	}
	p, ok := d[n]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return newMatrix(m, n) },
		}
		d[n] = p
	}
	matPoolMu.Unlock()
	p.Put(t)
}

func newMatrix(m, n int) *tensor.Dense {
	return tensor.New(tensor.WithShape(m, n), tensor.WithBacking(make([]float32, m*n)))
}
