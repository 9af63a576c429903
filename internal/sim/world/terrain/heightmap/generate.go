package heightmap

import "github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"

// Generate samples an n×n raw height field at (x+offsetX, y+offsetY).
// It returns the field and its local extremum; when shared is non-nil the local
// extremum is folded into it. shared must have a single writer.
func Generate(n int, offsetX, offsetY float64, src *noise.Field, s noise.Settings, shared *Extremum) (*Field, Extremum) {
	f := NewField(n)
	local := NewExtremum()
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			v := src.Octave(float64(x)+offsetX, float64(y)+offsetY, s)
			f.Values[x*n+y] = v
			local.Observe(v)
		}
	}
	if shared != nil {
		shared.Merge(local)
	}
	return f, local
}

// GenerateAmplified is the single-layer variant used for previews.
func GenerateAmplified(n int, offsetX, offsetY float64, src *noise.Field, s noise.Settings) *Field {
	f := NewField(n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			f.Values[x*n+y] = src.Amplified(float64(x)+offsetX, float64(y)+offsetY, s)
		}
	}
	return f
}
