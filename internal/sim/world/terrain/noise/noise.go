// Package noise samples deterministic 2D value fields for terrain height maps.
package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

type Source string

const (
	SourceSimplex Source = "simplex"
	SourcePerlin  Source = "perlin"
)

var ErrUnknownSource = errors.New("unknown noise source")

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceSimplex:
		return SourceSimplex, nil
	case SourcePerlin:
		return SourcePerlin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// MinScale is the smallest usable scale; lower values are corrected to it.
const MinScale = 0.0001

type Settings struct {
	Scale       float64
	Octaves     int
	Lacunarity  float64
	Persistence float64
	Source      Source

	// Single-layer sampling only.
	Frequency float64
	Amplitude float64
}

func DefaultSettings() Settings {
	return Settings{
		Scale:       40,
		Octaves:     1,
		Lacunarity:  1,
		Persistence: 1,
		Source:      SourceSimplex,
		Frequency:   1,
		Amplitude:   1,
	}
}

// Correct fixes values that would make sampling undefined and reports what changed.
func (s *Settings) Correct() []string {
	var notes []string
	if !(s.Scale > 0) {
		notes = append(notes, fmt.Sprintf("noise scale %v corrected to %v", s.Scale, MinScale))
		s.Scale = MinScale
	}
	if s.Octaves < 0 {
		notes = append(notes, fmt.Sprintf("noise octaves %d corrected to 0", s.Octaves))
		s.Octaves = 0
	}
	if s.Source == "" {
		s.Source = SourceSimplex
	}
	return notes
}

// Field is a seeded base noise in [0,1] plus the octave accumulation built on it.
// A Field is safe for concurrent use once constructed.
type Field struct {
	source Source
	eval   func(x, y float64) float64
}

func New(seed int64, source Source) *Field {
	f := &Field{source: source}
	switch source {
	case SourcePerlin:
		p := perlin.NewPerlin(2, 2, 1, seed)
		f.eval = func(x, y float64) float64 {
			// Noise2D is roughly in [-1,1].
			return (p.Noise2D(x, y) + 1) / 2
		}
	default:
		f.source = SourceSimplex
		s := opensimplex.NewNormalized(seed)
		f.eval = s.Eval2
	}
	return f
}

func (f *Field) Source() Source { return f.source }

// Sample returns the base noise at (x, y), clamped to [0,1].
func (f *Field) Sample(x, y float64) float32 {
	v := f.eval(x, y)
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return float32(v)
}

// Octave accumulates settings.Octaves layers of signed noise:
// sum of (Sample(p/scale*lacunarity^i)*2 - 1) * persistence^i.
func (f *Field) Octave(x, y float64, s Settings) float32 {
	scale := s.Scale
	if !(scale > 0) {
		scale = MinScale
	}
	amplitude := 1.0
	frequency := 1.0
	var h float64
	for i := 0; i < s.Octaves; i++ {
		sx := x / scale * frequency
		sy := y / scale * frequency
		h += (float64(f.Sample(sx, sy))*2 - 1) * amplitude
		amplitude *= s.Persistence
		frequency *= s.Lacunarity
	}
	return float32(h)
}

// Amplified is the single-layer variant: Sample((x,y)*frequency/scale) * amplitude.
func (f *Field) Amplified(x, y float64, s Settings) float32 {
	scale := s.Scale
	if !(scale > 0) {
		scale = MinScale
	}
	v := float64(f.Sample(x*s.Frequency/scale, y*s.Frequency/scale)) * s.Amplitude
	if math.IsNaN(v) {
		return 0
	}
	return float32(v)
}
