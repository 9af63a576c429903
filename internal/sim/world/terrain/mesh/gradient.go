package mesh

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

type ColorKey struct {
	Time  float32
	Color mgl32.Vec4
}

// Gradient blends RGBA color keys linearly. An empty gradient is opaque white.
type Gradient struct {
	keys []ColorKey
}

func NewGradient(keys ...ColorKey) *Gradient {
	g := &Gradient{keys: append([]ColorKey(nil), keys...)}
	sort.SliceStable(g.keys, func(i, j int) bool { return g.keys[i].Time < g.keys[j].Time })
	return g
}

func GrayscaleGradient() *Gradient {
	return NewGradient(
		ColorKey{Time: 0, Color: mgl32.Vec4{0, 0, 0, 1}},
		ColorKey{Time: 1, Color: mgl32.Vec4{1, 1, 1, 1}},
	)
}

func (g *Gradient) Keys() []ColorKey {
	if g == nil {
		return nil
	}
	return append([]ColorKey(nil), g.keys...)
}

func (g *Gradient) Evaluate(t float32) mgl32.Vec4 {
	if g == nil || len(g.keys) == 0 {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	first, last := g.keys[0], g.keys[len(g.keys)-1]
	if t <= first.Time {
		return first.Color
	}
	if t >= last.Time {
		return last.Color
	}
	i := sort.Search(len(g.keys), func(i int) bool { return g.keys[i].Time > t })
	k0, k1 := g.keys[i-1], g.keys[i]
	span := k1.Time - k0.Time
	if span == 0 {
		return k1.Color
	}
	s := (t - k0.Time) / span
	return k0.Color.Add(k1.Color.Sub(k0.Color).Mul(s))
}

func (g *Gradient) Clone() *Gradient {
	if g == nil {
		return nil
	}
	return &Gradient{keys: append([]ColorKey(nil), g.keys...)}
}
