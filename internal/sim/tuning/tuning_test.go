package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shariarpapon/everime-world-generator/internal/sim/visibility"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadRepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ws, err := tu.WorldSettings()
	if err != nil {
		t.Fatalf("world settings: %v", err)
	}
	if ws.Height.Law != mesh.LawSquareCurve || !ws.Height.RadialFalloff {
		t.Fatalf("height: %+v", ws.Height)
	}
	if ws.Noise.Octaves != 4 || ws.Noise.Source != noise.SourceSimplex {
		t.Fatalf("noise: %+v", ws.Noise)
	}
	if got := tu.Templates(); len(got) != 2 || got[0] != "pine" || got[1] != "rock" {
		t.Fatalf("templates: %v", got)
	}
	if len(ws.Height.Gradient.Keys()) != 5 || ws.Height.Curve.Len() != 3 {
		t.Fatalf("curve/gradient not converted")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	tu, err := Load(writeTuning(t, "world:\n  seed: abc\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.World.Seed != "abc" || tu.World.ChunkSize != 32 || tu.World.SeedContext == "" {
		t.Fatalf("world: %+v", tu.World)
	}
	if tu.Runtime.FrameRateHz != 60 || tu.Runtime.FixedRateHz != 50 || !tu.Runtime.GenerateOnStart {
		t.Fatalf("runtime: %+v", tu.Runtime)
	}
	if len(tu.Height.Curve.Keys) != 2 || len(tu.Height.Gradient) != 2 {
		t.Fatalf("curve/gradient defaults missing")
	}
	cfg, err := tu.StreamerConfig(nil)
	if err != nil {
		t.Fatalf("streamer config: %v", err)
	}
	if cfg.Phase != visibility.PhaseUpdate || !cfg.Enabled || cfg.VisibleChunksPerAxis != 16 {
		t.Fatalf("streamer config: %+v", cfg)
	}
	if tu.Runtime.FrameInterval() <= 0 {
		t.Fatalf("frame interval")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	tu, err := Load(writeTuning(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.World.SizeInChunks != Default().World.SizeInChunks {
		t.Fatalf("expected defaults, got %+v", tu.World)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "world:\n  sede: abc\n",
		"bad law":        "height:\n  law: quartic\n",
		"bad phase":      "streaming:\n  phase: sometimes\n",
		"chance > 1":     "spawn:\n  global_chance: 2\n",
		"short color":    "height:\n  gradient:\n    - { time: 0, color: [1, 1] }\n",
		"zero chunks":    "world:\n  size_in_chunks: 0\n",
		"template-less":  "spawn:\n  objects:\n    - { chance: 0.5 }\n",
		"string octaves": "noise:\n  octaves: many\n",
	}
	for name, body := range cases {
		_, err := Load(writeTuning(t, body))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.HasPrefix(err.Error(), "tuning.yaml:") {
			t.Fatalf("%s: unwrapped error %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
