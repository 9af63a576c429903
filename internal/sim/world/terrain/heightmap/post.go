package heightmap

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/mathx"
)

// Normalize maps every sample into [0,1] against the world extremum.
// A degenerate extremum (min == max) yields an all-zero field.
func Normalize(f *Field, ext Extremum) *Field {
	out := NewField(f.Size)
	for i, v := range f.Values {
		out.Values[i] = mathx.InverseLerp(ext.Min, ext.Max, v)
	}
	return out
}

// NormalizeWithFalloff normalizes and then subtracts a radial falloff centered
// on the world, so heights drop toward the world's rim.
// chunkPos is the chunk's global position; unitSize the world edge length in units.
// The second result reports whether a sample sat exactly on the world center.
func NormalizeWithFalloff(f *Field, ext Extremum, chunkPos mgl32.Vec3, unitSize float32) (*Field, bool) {
	out := NewField(f.Size)
	radius := unitSize / 2
	extent := float32(f.Size-1) / 2
	var centerHit bool
	for x := 0; x < f.Size; x++ {
		for y := 0; y < f.Size; y++ {
			i := x*f.Size + y
			h := mathx.InverseLerp(ext.Min, ext.Max, f.Values[i])
			wx := float32(x) - extent + chunkPos.X()
			wy := float32(y) - extent + chunkPos.Z()
			dx := float64(wx - radius)
			dy := float64(wy - radius)
			dist := float32(math.Sqrt(dx*dx + dy*dy))
			if dist == 0 {
				centerHit = true
			}
			falloff := 1 - radius/dist
			out.Values[i] = mathx.Clamp01(h - falloff)
		}
	}
	return out, centerHit
}
