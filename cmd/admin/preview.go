package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
	"github.com/shariarpapon/everime-world-generator/internal/sim/tuning"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"
)

const shades = " .:-=+*#%@"

// previewCmd prints one chunk of single-pass noise as ASCII, normalized to
// the chunk's own range.
func previewCmd(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file uses defaults)")
	seed := fs.String("seed", "", "seed override")
	cx := fs.Int("x", 0, "chunk x")
	cy := fs.Int("y", 0, "chunk y")
	size := fs.Int("size", 0, "chunk size override")
	_ = fs.Parse(args)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Default()
	}
	if *seed != "" {
		tune.World.Seed = *seed
	}
	if *size > 0 {
		tune.World.ChunkSize = *size
	}
	s, err := tune.WorldSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}
	for _, note := range s.Correct() {
		fmt.Fprintln(os.Stderr, "corrected:", note)
	}

	src := noise.New(master.NoiseSeed(s.CombinedSeed()), s.Noise.Source)
	f := heightmap.GenerateAmplified(s.ChunkSize+1,
		float64(*cx*s.ChunkSize), float64(*cy*s.ChunkSize), src, s.Noise)
	fmt.Printf("seed=%q chunk=%d,%d size=%d source=%s\n", s.Seed, *cx, *cy, s.ChunkSize, s.Noise.Source)
	fmt.Print(renderPreview(f))
}

// renderPreview draws +y upward, one character per vertex.
func renderPreview(f *heightmap.Field) string {
	ext := heightmap.NewExtremum()
	for _, v := range f.Values {
		ext.Observe(v)
	}
	norm := heightmap.Normalize(f, ext)

	var b strings.Builder
	n := norm.Size
	for y := n - 1; y >= 0; y-- {
		for x := 0; x < n; x++ {
			i := int(norm.At(x, y) * float32(len(shades)-1))
			if i < 0 {
				i = 0
			}
			if i >= len(shades) {
				i = len(shades) - 1
			}
			b.WriteByte(shades[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
