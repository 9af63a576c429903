package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
)

// Build lays a vertex on every height sample, centered on the chunk origin.
// Heights are shaped by law, scaled by multiplier and colored by gradient.
func Build(f *heightmap.Field, multiplier float32, curve *Curve, gradient *Gradient, law HeightLaw) *Data {
	n := f.Size
	d := NewData(n)
	extent := float32(n-1) / 2
	i := 0
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			h := law.Apply(f.Values[i], curve)
			d.Vertices[i] = mgl32.Vec3{float32(x) - extent, h * multiplier, float32(y) - extent}
			d.UV[i] = mgl32.Vec2{float32(x) / float32(n), float32(y) / float32(n)}
			d.Colors[i] = gradient.Evaluate(h)
			if x < n-1 && y < n-1 {
				d.addTriangle(i, i+1, i+n)
				d.addTriangle(i+1, i+n+1, i+n)
			}
			i++
		}
	}
	return d
}
