package heightmap

import "math"

// Field is a square n×n grid of height samples indexed [x*n+y].
type Field struct {
	Size   int
	Values []float32
}

func NewField(n int) *Field {
	if n < 0 {
		n = 0
	}
	return &Field{Size: n, Values: make([]float32, n*n)}
}

func (f *Field) index(x, y int) int { return x*f.Size + y }

func (f *Field) At(x, y int) float32 { return f.Values[f.index(x, y)] }

func (f *Field) Set(x, y int, v float32) { f.Values[f.index(x, y)] = v }

func (f *Field) Clone() *Field {
	out := &Field{Size: f.Size, Values: make([]float32, len(f.Values))}
	copy(out.Values, f.Values)
	return out
}

// Extremum tracks the running min/max of every sample observed.
// The zero value is not empty; use NewExtremum.
type Extremum struct {
	Min float32
	Max float32
}

func NewExtremum() Extremum {
	return Extremum{Min: float32(math.Inf(1)), Max: float32(math.Inf(-1))}
}

func (e Extremum) Empty() bool { return e.Min > e.Max }

func (e *Extremum) Observe(v float32) {
	if v < e.Min {
		e.Min = v
	}
	if v > e.Max {
		e.Max = v
	}
}

func (e *Extremum) Merge(o Extremum) {
	if o.Empty() {
		return
	}
	e.Observe(o.Min)
	e.Observe(o.Max)
}
