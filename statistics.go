package boltzmann

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Statistics accumulates per-layer mean activations across Gibbs sweeps.
// Attach one to a Sampler with WithStatistics to watch a chain mix; the
// numbers are diagnostics only and never feed back into sampling.
type Statistics struct {
	Layers []string
	Means  map[string][]float32
}

func MakeStatistics() Statistics {
	return Statistics{
		Layers: make([]string, 0, 8),
		Means:  make(map[string][]float32),
	}
}

// Update appends the current mean activation of every layer in the batch.
func (s *Statistics) Update(p Particles) {
	for i, l := range p {
		lname := fmt.Sprintf("layer%d", i)
		if _, ok := s.Means[lname]; !ok {
			s.Layers = append(s.Layers, lname)
		}
		s.Means[lname] = append(s.Means[lname], mean(floats(l)))
	}
}

// Sweeps returns the number of recorded sweeps.
func (s *Statistics) Sweeps() int {
	if len(s.Layers) == 0 {
		return 0
	}
	return len(s.Means[s.Layers[0]])
}

// Dump writes the recorded means as CSV, one column per layer, one row per
// sweep.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(s.Layers); err != nil {
		return err
	}
	var records [][]string
	for i, layer := range s.Layers {
		for j, m := range s.Means[layer] {
			for len(records) <= j {
				records = append(records, make([]string, len(s.Layers)))
			}
			records[j][i] = strconv.FormatFloat(float64(m), 'f', -1, 32)
		}
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func mean(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	var sum float32
	for _, x := range xs {
		sum += x
	}
	return sum / float32(len(xs))
}
